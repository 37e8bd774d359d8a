package catalog

import (
	"context"
	"testing"

	"buildmart/internal"
)

func seededMemory() *Memory {
	m := NewMemory()
	m.AddSupplier(internal.Supplier{ID: 1, Name: "Alpha Traders"})
	m.AddSupplier(internal.Supplier{ID: 2, Name: "Beta Materials"})
	m.AddProduct(internal.Product{ID: 10, SupplierID: 1, Name: "Portland Cement OPC 53", Category: "cement", Price: 350, Status: internal.ProductApproved, IsActive: true})
	m.AddProduct(internal.Product{ID: 20, SupplierID: 2, Name: "TMT Steel Bar 12mm", Category: "steel", Price: 60, Status: internal.ProductApproved, IsActive: true})
	return m
}

func TestFindProductsBySubstring(t *testing.T) {
	m := seededMemory()
	out, err := m.FindProductsByNameOrCategory(context.Background(), "portland cement", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != 10 {
		t.Fatalf("out=%v", out)
	}
}

func TestFindProductsByReorderedTokens(t *testing.T) {
	m := seededMemory()

	// Not a substring of any product name, but both tokens are indexed.
	out, err := m.FindProductsByNameOrCategory(context.Background(), "cement portland", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != 10 {
		t.Fatalf("out=%v", out)
	}
}

func TestFindProductsTokenPathNeedsFullCoverage(t *testing.T) {
	m := seededMemory()

	// One indexed token plus one junk token must not match.
	out, err := m.FindProductsByNameOrCategory(context.Background(), "zzqk cement", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("out=%v", out)
	}
}

func TestFindProductsTokenPathHonorsSupplierFilter(t *testing.T) {
	m := seededMemory()

	out, err := m.FindProductsByNameOrCategory(context.Background(), "cement portland", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("out=%v", out)
	}
}
