package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/storage"
	"buildmart/internal/util"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedVendors(t *testing.T, db *storage.DB) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.UpsertSupplier(ctx, internal.Supplier{ID: 1, Name: "Alpha Traders"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertSupplier(ctx, internal.Supplier{ID: 2, Name: "Beta Materials"}); err != nil {
		t.Fatal(err)
	}
	err := db.UpsertProducts(ctx, []internal.Product{
		{ID: 10, SupplierID: 1, Name: "Portland Cement OPC 53", Category: "cement", Price: 350, Unit: "bags", Stock: 1200, Rating: 4.5, Status: internal.ProductApproved, IsActive: true},
		{ID: 20, SupplierID: 2, Name: "TMT Steel Bar 12mm", Category: "steel", Price: 60, Unit: "pcs", Stock: 4000, Rating: 4.2, Status: internal.ProductApproved, IsActive: true},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateOrdersGroupsByVendor(t *testing.T) {
	db := openTestDB(t)
	seedVendors(t, db)
	ctx := context.Background()

	boq, err := db.CreateBOQ(ctx, "buyer-1", "csv", "site.csv")
	if err != nil {
		t.Fatal(err)
	}

	selections := []SelectedItem{
		{Item: internal.NormalizedLineItem{RawName: "Portland Cement", ProductID: util.Int64Ptr(10), Quantity: 10}, SupplierID: 1},
		{Item: internal.NormalizedLineItem{RawName: "Steel Rebar 12mm", ProductID: util.Int64Ptr(20), Quantity: 5}, SupplierID: 2},
		{Item: internal.NormalizedLineItem{RawName: "unselected thing", Quantity: 1}},
	}

	synth := NewSynthesizer(db, db, db, db, zap.NewNop()).WithBOQMarker(db)
	orders, err := synth.CreateOrders(ctx, "buyer-1", boq.ID, selections)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 {
		t.Fatalf("len=%d", len(orders))
	}

	if orders[0].TotalAmount != 3500 {
		t.Fatalf("total=%v", orders[0].TotalAmount)
	}
	if orders[1].TotalAmount != 300 {
		t.Fatalf("total=%v", orders[1].TotalAmount)
	}
	if orders[0].OrderNumber == orders[1].OrderNumber {
		t.Fatalf("duplicate order number %s", orders[0].OrderNumber)
	}
	for _, order := range orders {
		if !strings.HasPrefix(order.OrderNumber, "ORD") {
			t.Fatalf("orderNumber=%q", order.OrderNumber)
		}
		if order.ID == 0 {
			t.Fatal("order not persisted")
		}
	}

	// Suppliers are notified once per order.
	notifications, err := db.ListNotifications(ctx, "supplier:1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifications) != 1 {
		t.Fatalf("notifications=%d", len(notifications))
	}

	updated, err := db.GetBOQ(ctx, boq.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != internal.BOQCompleted {
		t.Fatalf("boq status=%s", updated.Status)
	}
}

func TestCreateOrdersAbortsWhenAnyItemFailsToResolve(t *testing.T) {
	db := openTestDB(t)
	seedVendors(t, db)
	ctx := context.Background()

	selections := []SelectedItem{
		{Item: internal.NormalizedLineItem{RawName: "Portland Cement", ProductID: util.Int64Ptr(10), Quantity: 10}, SupplierID: 1},
		{Item: internal.NormalizedLineItem{RawName: "unicorn dust premium"}, SupplierID: 2},
	}

	synth := NewSynthesizer(db, db, db, db, zap.NewNop())
	orders, err := synth.CreateOrders(ctx, "buyer-1", 0, selections)

	var resolutionErr *VendorResolutionError
	if !errors.As(err, &resolutionErr) {
		t.Fatalf("err=%v", err)
	}
	if resolutionErr.VendorID != 2 {
		t.Fatalf("vendorId=%d", resolutionErr.VendorID)
	}
	if len(orders) != 0 {
		t.Fatalf("orders=%d", len(orders))
	}

	now := time.Now()
	count, err := db.CountOrdersInMonth(ctx, now.Year(), int(now.Month()))
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("count=%d, partial orders were created", count)
	}
}

func TestCreateOrdersRejectsUnknownVendor(t *testing.T) {
	db := openTestDB(t)
	seedVendors(t, db)
	ctx := context.Background()

	selections := []SelectedItem{
		{Item: internal.NormalizedLineItem{RawName: "Portland Cement", ProductID: util.Int64Ptr(10)}, SupplierID: 99},
	}

	synth := NewSynthesizer(db, db, db, db, zap.NewNop())
	_, err := synth.CreateOrders(ctx, "buyer-1", 0, selections)

	var invalidErr *InvalidVendorReferenceError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("err=%v", err)
	}
	if invalidErr.VendorID != 99 {
		t.Fatalf("vendorId=%d", invalidErr.VendorID)
	}
}

func TestCreateOrdersResolvesByNameWithinVendor(t *testing.T) {
	db := openTestDB(t)
	seedVendors(t, db)
	ctx := context.Background()

	// No product reference, only a normalized name scoped to the vendor.
	selections := []SelectedItem{
		{Item: internal.NormalizedLineItem{RawName: "cement", NormalizedName: "Portland Cement", Quantity: 2}, SupplierID: 1},
	}

	synth := NewSynthesizer(db, db, db, db, zap.NewNop())
	orders, err := synth.CreateOrders(ctx, "buyer-1", 0, selections)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("len=%d", len(orders))
	}
	if orders[0].LineItems[0].ProductID != 10 {
		t.Fatalf("productId=%d", orders[0].LineItems[0].ProductID)
	}
	if orders[0].TotalAmount != 700 {
		t.Fatalf("total=%v", orders[0].TotalAmount)
	}
}

func TestCreateOrdersNoSelections(t *testing.T) {
	db := openTestDB(t)
	synth := NewSynthesizer(db, db, db, db, zap.NewNop())

	orders, err := synth.CreateOrders(context.Background(), "buyer-1", 0, []SelectedItem{
		{Item: internal.NormalizedLineItem{RawName: "nothing picked"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if orders != nil {
		t.Fatalf("orders=%v", orders)
	}
}

func TestOrderNumbersAreSequentialWithinMonth(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := db.NextOrderSequence(ctx, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.NextOrderSequence(ctx, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("seq %d %d", first, second)
	}

	// A different month starts its own counter.
	other, err := db.NextOrderSequence(ctx, 2026, 9)
	if err != nil {
		t.Fatal(err)
	}
	if other != 1 {
		t.Fatalf("seq=%d", other)
	}
}
