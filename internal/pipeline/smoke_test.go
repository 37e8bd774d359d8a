package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"buildmart/internal"
)

// TestSmokeCSVToOrders walks the whole flow against a real database:
// upload a CSV, review the matches, select vendors, create the orders,
// export the review sheet.
func TestSmokeCSVToOrders(t *testing.T) {
	db := openTestDB(t)
	seedVendors(t, db)
	ctx := context.Background()

	csvData := []byte("Description,Qty,Unit\n" +
		"Portland Cement,10,bags\n" +
		"Steel Rebar 12mm,5,pcs\n" +
		"asdkjasd qwnekj,2,pcs\n")

	normalizer := NewNormalizer(db, db, testRules(t), zap.NewNop())
	processor := NewProcessingService(db, normalizer, zap.NewNop())

	result, err := processor.ProcessBytes(ctx, "buyer-1", csvData, internal.SourceCSV, "site.csv")
	if err != nil {
		t.Fatal(err)
	}
	if result.Extracted != 3 {
		t.Fatalf("extracted=%d", result.Extracted)
	}
	if result.Matched != 2 || result.Unmatched != 1 {
		t.Fatalf("matched=%d unmatched=%d", result.Matched, result.Unmatched)
	}

	items, err := db.ListBOQItems(ctx, result.BOQID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items=%d", len(items))
	}
	if items[0].ProductID == nil || *items[0].ProductID != 10 {
		t.Fatalf("item 1 productId=%v", items[0].ProductID)
	}
	if items[1].ProductID == nil || *items[1].ProductID != 20 {
		t.Fatalf("item 2 productId=%v", items[1].ProductID)
	}
	if items[2].ProductID != nil {
		t.Fatalf("item 3 should be unmatched, got product %d", *items[2].ProductID)
	}
	if items[2].Confidence > 0.40 {
		t.Fatalf("item 3 confidence=%v", items[2].Confidence)
	}

	if err := db.SelectItemSupplier(ctx, items[0].ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := db.SelectItemSupplier(ctx, items[1].ID, 2); err != nil {
		t.Fatal(err)
	}

	items, err = db.ListBOQItems(ctx, result.BOQID)
	if err != nil {
		t.Fatal(err)
	}
	selections := make([]SelectedItem, 0, len(items))
	for _, it := range items {
		sel := SelectedItem{Item: it.NormalizedLineItem}
		if it.SelectedSupplierID != nil {
			sel.SupplierID = *it.SelectedSupplierID
		}
		selections = append(selections, sel)
	}

	synth := NewSynthesizer(db, db, db, db, zap.NewNop()).WithBOQMarker(db)
	orders, err := synth.CreateOrders(ctx, "buyer-1", result.BOQID, selections)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 {
		t.Fatalf("orders=%d", len(orders))
	}
	if orders[0].TotalAmount != 3500 || orders[1].TotalAmount != 300 {
		t.Fatalf("totals %v %v", orders[0].TotalAmount, orders[1].TotalAmount)
	}

	boq, err := db.GetBOQ(ctx, result.BOQID)
	if err != nil {
		t.Fatal(err)
	}
	if boq.Status != internal.BOQCompleted {
		t.Fatalf("boq status=%s", boq.Status)
	}

	rows, err := db.GetReviewRows(ctx, result.BOQID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d", len(rows))
	}
	// Best match first, carrying the original source line.
	if rows[0].RawName != "Portland Cement" {
		t.Fatalf("rows[0].RawName=%q", rows[0].RawName)
	}
	if rows[0].RawLine != "Portland Cement | 10 | bags" {
		t.Fatalf("rows[0].RawLine=%q", rows[0].RawLine)
	}

	out := filepath.Join(t.TempDir(), "review.xlsx")
	if err := ExportReviewRowsToXLSX(rows, out); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("empty export")
	}
}
