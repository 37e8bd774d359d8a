package pipeline

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/catalog"
	"buildmart/internal/config"
)

func testRules(t *testing.T) config.Rules {
	t.Helper()
	rules, err := config.LoadRules("")
	if err != nil {
		t.Fatal(err)
	}
	return rules
}

func seededCatalog() *catalog.Memory {
	mem := catalog.NewMemory()
	mem.AddSupplier(internal.Supplier{ID: 1, Name: "Alpha Traders", Company: "Alpha Pvt Ltd", Address: "Pune"})
	mem.AddSupplier(internal.Supplier{ID: 2, Name: "Beta Materials"})
	mem.AddProduct(internal.Product{
		ID: 10, SupplierID: 1, Name: "Portland Cement OPC 53", Category: "cement",
		Price: 350, Unit: "bags", Stock: 1200, Rating: 4.5,
		Status: internal.ProductApproved, IsActive: true, UpdatedAt: "2026-01-02T00:00:00Z",
	})
	mem.AddProduct(internal.Product{
		ID: 11, SupplierID: 2, Name: "Portland Cement PPC", Category: "cement",
		Price: 340, Unit: "bags", Stock: 90, Rating: 4.0,
		Status: internal.ProductApproved, IsActive: true, UpdatedAt: "2026-01-01T00:00:00Z",
	})
	mem.AddProduct(internal.Product{
		ID: 20, SupplierID: 2, Name: "TMT Steel Bar 12mm", Category: "steel",
		Price: 60, Unit: "pcs", Stock: 4000, Rating: 4.2,
		Status: internal.ProductApproved, IsActive: true, UpdatedAt: "2026-01-03T00:00:00Z",
	})
	return mem
}

func TestNormalizeExactMatch(t *testing.T) {
	mem := seededCatalog()
	norm := NewNormalizer(mem, mem, testRules(t), zap.NewNop())

	item := norm.Normalize(context.Background(), internal.RawLineItem{
		LineNo: 1, Description: "Portland Cement OPC 53", Quantity: 10, Unit: "bags",
	})

	if item.Confidence != 1.0 {
		t.Fatalf("confidence=%v", item.Confidence)
	}
	if item.ProductID == nil || *item.ProductID != 10 {
		t.Fatalf("productId=%v", item.ProductID)
	}
	if !item.IsAvailable {
		t.Fatal("expected available")
	}
	if item.AvailableSuppliers != 2 {
		t.Fatalf("availableSuppliers=%d", item.AvailableSuppliers)
	}
	if item.Supplier == nil || item.Supplier.Name != "Alpha Traders" {
		t.Fatalf("supplier=%+v", item.Supplier)
	}
	if item.Category != "cement" {
		t.Fatalf("category=%q", item.Category)
	}
}

func TestNormalizePartialMatch(t *testing.T) {
	mem := seededCatalog()
	norm := NewNormalizer(mem, mem, testRules(t), zap.NewNop())

	item := norm.Normalize(context.Background(), internal.RawLineItem{Description: "Steel Rebar 12mm", Quantity: 5})

	if item.ProductID == nil || *item.ProductID != 20 {
		t.Fatalf("productId=%v", item.ProductID)
	}
	if item.NormalizedName != "TMT Steel Bar 12mm" {
		t.Fatalf("normalizedName=%q", item.NormalizedName)
	}
	// 2 of 3 item words appear in the product name, so the word-overlap
	// band applies.
	if item.Confidence < 0.60 || item.Confidence >= 0.75 {
		t.Fatalf("confidence=%v", item.Confidence)
	}
}

func TestNormalizeNoMatch(t *testing.T) {
	mem := catalog.NewMemory()
	norm := NewNormalizer(mem, mem, testRules(t), zap.NewNop())

	t.Run("without category guess", func(t *testing.T) {
		item := norm.Normalize(context.Background(), internal.RawLineItem{Description: "zzqk xylo widget"})
		if item.Confidence != 0.30 {
			t.Fatalf("confidence=%v", item.Confidence)
		}
		if item.ProductID != nil {
			t.Fatalf("productId=%v", *item.ProductID)
		}
		if item.IsAvailable {
			t.Fatal("unmatched item must not be available")
		}
		if item.Category != "other" {
			t.Fatalf("category=%q", item.Category)
		}
	})

	t.Run("with category guess", func(t *testing.T) {
		item := norm.Normalize(context.Background(), internal.RawLineItem{Description: "special cement blend"})
		if item.Confidence != 0.40 {
			t.Fatalf("confidence=%v", item.Confidence)
		}
		if item.Category != "cement" {
			t.Fatalf("category=%q", item.Category)
		}
		if item.NormalizedName != "special cement blend" {
			t.Fatalf("normalizedName=%q", item.NormalizedName)
		}
	})
}

type fakeGenerator struct {
	reply string
	err   error
}

func (f fakeGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func TestNormalizeAssist(t *testing.T) {
	mem := seededCatalog()

	t.Run("assist rescues an unmatched description", func(t *testing.T) {
		norm := NewNormalizer(mem, mem, testRules(t), zap.NewNop()).
			WithAssist(fakeGenerator{reply: "Portland Cement OPC 53"}, 0.25)
		item := norm.Normalize(context.Background(), internal.RawLineItem{Description: "grey binder powder grade"})
		if item.ProductID == nil {
			t.Fatal("expected assist to find a product")
		}
	})

	t.Run("generator failure degrades to fallback", func(t *testing.T) {
		norm := NewNormalizer(mem, mem, testRules(t), zap.NewNop()).
			WithAssist(fakeGenerator{err: errors.New("quota exceeded")}, 0.45)
		item := norm.Normalize(context.Background(), internal.RawLineItem{Description: "grey binder powder grade"})
		if item.ProductID != nil {
			t.Fatalf("productId=%v", *item.ProductID)
		}
		if item.Confidence != 0.30 {
			t.Fatalf("confidence=%v", item.Confidence)
		}
	})
}
