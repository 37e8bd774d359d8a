package pipeline

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/catalog"
)

func substitutionCatalog() *catalog.Memory {
	mem := catalog.NewMemory()
	mem.AddSupplier(internal.Supplier{ID: 1, Name: "Alpha Traders"})
	mem.AddSupplier(internal.Supplier{ID: 2, Name: "Beta Materials"})
	mem.AddProduct(internal.Product{
		ID: 1, SupplierID: 1, Name: "Portland Cement OPC 53", Category: "cement",
		Price: 350, Rating: 4.0, Status: internal.ProductApproved, IsActive: true,
	})
	// Cheaper by more than the savings threshold.
	mem.AddProduct(internal.Product{
		ID: 2, SupplierID: 2, Name: "Portland Cement PPC", Category: "cement",
		Price: 300, Rating: 3.0, Status: internal.ProductApproved, IsActive: true,
	})
	// Similar price, clearly better rating.
	mem.AddProduct(internal.Product{
		ID: 3, SupplierID: 2, Name: "Portland Cement OPC 43 Premium", Category: "cement",
		Price: 360, Rating: 4.6, Status: internal.ProductApproved, IsActive: true,
	})
	// Above the price band.
	mem.AddProduct(internal.Product{
		ID: 4, SupplierID: 2, Name: "Imported White Cement", Category: "cement",
		Price: 400, Rating: 5.0, Status: internal.ProductApproved, IsActive: true,
	})
	// Marginal savings, marginal rating: nothing to say about it.
	mem.AddProduct(internal.Product{
		ID: 5, SupplierID: 2, Name: "Portland Cement OPC 53 Alt", Category: "cement",
		Price: 345, Rating: 4.1, Status: internal.ProductApproved, IsActive: true,
	})
	return mem
}

func TestSuggestSubstitutions(t *testing.T) {
	mem := substitutionCatalog()
	advisor := NewAdvisor(mem, mem, testRules(t).Substitution, zap.NewNop())

	suggestions, err := advisor.Suggest(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("len=%d: %+v", len(suggestions), suggestions)
	}

	if suggestions[0].ProductID != 2 || suggestions[0].Reason != "Lower price" {
		t.Fatalf("first=%+v", suggestions[0])
	}
	if suggestions[0].Savings != 50 {
		t.Fatalf("savings=%v", suggestions[0].Savings)
	}
	if suggestions[0].SupplierName != "Beta Materials" {
		t.Fatalf("supplierName=%q", suggestions[0].SupplierName)
	}

	if suggestions[1].ProductID != 3 || suggestions[1].Reason != "Better rating with similar price" {
		t.Fatalf("second=%+v", suggestions[1])
	}
}

func TestSuggestIsDeterministic(t *testing.T) {
	mem := substitutionCatalog()
	advisor := NewAdvisor(mem, mem, testRules(t).Substitution, zap.NewNop())

	first, err := advisor.Suggest(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := advisor.Suggest(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("len %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("suggestion %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSuggestUnknownProduct(t *testing.T) {
	mem := catalog.NewMemory()
	advisor := NewAdvisor(mem, mem, testRules(t).Substitution, zap.NewNop())

	if _, err := advisor.Suggest(context.Background(), 999); err == nil {
		t.Fatal("expected error for unknown product")
	}
}

func TestSuggestUnpricedProduct(t *testing.T) {
	mem := catalog.NewMemory()
	mem.AddProduct(internal.Product{
		ID: 1, SupplierID: 1, Name: "Free Sample", Category: "cement",
		Price: 0, Status: internal.ProductApproved, IsActive: true,
	})
	advisor := NewAdvisor(mem, mem, testRules(t).Substitution, zap.NewNop())

	suggestions, err := advisor.Suggest(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("len=%d", len(suggestions))
	}
}
