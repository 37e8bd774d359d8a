package pipeline

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/catalog"
	"buildmart/internal/config"
)

func rankingRules(t *testing.T) config.RankingRules {
	return testRules(t).Ranking
}

func TestRankOrdersByScore(t *testing.T) {
	mem := catalog.NewMemory()
	mem.AddSupplier(internal.Supplier{ID: 1, Name: "Alpha Traders"})
	mem.AddSupplier(internal.Supplier{ID: 2, Name: "Beta Materials"})
	mem.AddProduct(internal.Product{
		ID: 10, SupplierID: 1, Name: "Portland Cement OPC 53", Category: "cement",
		Price: 350, Stock: 1200, Rating: 4.5, Status: internal.ProductApproved, IsActive: true,
	})
	mem.AddProduct(internal.Product{
		ID: 11, SupplierID: 2, Name: "Portland Cement PPC", Category: "cement",
		Price: 340, Stock: 90, Rating: 4.0, Status: internal.ProductApproved, IsActive: true,
	})

	ranker := NewRanker(mem, mem, rankingRules(t), zap.NewNop())
	candidates, err := ranker.Rank(context.Background(), internal.NormalizedLineItem{
		NormalizedName: "Portland Cement", Category: "cement",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Fatalf("len=%d", len(candidates))
	}

	// Supplier 1: (100-3.5) + 4.5/5*30 + stock cap 20 = 143.5
	// Supplier 2: (100-3.4) + 4.0/5*30 + 90/1000*20  = 122.4
	if candidates[0].SupplierID != 1 {
		t.Fatalf("first=%d", candidates[0].SupplierID)
	}
	if diff := candidates[0].RankScore - 143.5; diff > 0.01 || diff < -0.01 {
		t.Fatalf("score=%v", candidates[0].RankScore)
	}
	if candidates[0].LeadTimeDays != 2 {
		t.Fatalf("lead=%d", candidates[0].LeadTimeDays)
	}
	if candidates[1].LeadTimeDays != 5 {
		t.Fatalf("lead=%d", candidates[1].LeadTimeDays)
	}
	if candidates[0].Name != "Alpha Traders" {
		t.Fatalf("name=%q", candidates[0].Name)
	}
}

func TestRankSkipsUnapprovedAndUnpriced(t *testing.T) {
	mem := catalog.NewMemory()
	mem.AddSupplier(internal.Supplier{ID: 1, Name: "Alpha Traders"})
	mem.AddSupplier(internal.Supplier{ID: 3, Name: "Gamma Supply"})
	mem.AddSupplier(internal.Supplier{ID: 4, Name: "Delta Mart"})
	mem.AddProduct(internal.Product{
		ID: 10, SupplierID: 1, Name: "Portland Cement OPC 53", Category: "cement",
		Price: 350, Stock: 100, Rating: 4.0, Status: internal.ProductApproved, IsActive: true,
	})
	mem.AddProduct(internal.Product{
		ID: 30, SupplierID: 3, Name: "Portland Cement Budget", Category: "cement",
		Price: 300, Stock: 500, Rating: 4.9, Status: internal.ProductPending, IsActive: true,
	})
	mem.AddProduct(internal.Product{
		ID: 40, SupplierID: 4, Name: "Portland Cement Zero", Category: "cement",
		Price: 0, Stock: 500, Rating: 4.9, Status: internal.ProductApproved, IsActive: true,
	})

	ranker := NewRanker(mem, mem, rankingRules(t), zap.NewNop())
	candidates, err := ranker.Rank(context.Background(), internal.NormalizedLineItem{
		NormalizedName: "Portland Cement", Category: "cement",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].SupplierID != 1 {
		t.Fatalf("candidates=%+v", candidates)
	}
}

func TestRankNoCandidatesIsNotAnError(t *testing.T) {
	mem := catalog.NewMemory()
	ranker := NewRanker(mem, mem, rankingRules(t), zap.NewNop())

	candidates, err := ranker.Rank(context.Background(), internal.NormalizedLineItem{NormalizedName: "unicorn dust"})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Fatalf("len=%d", len(candidates))
	}
}

func TestRankCapsCandidates(t *testing.T) {
	mem := catalog.NewMemory()
	for i := int64(1); i <= 14; i++ {
		mem.AddSupplier(internal.Supplier{ID: i, Name: fmt.Sprintf("Supplier %d", i)})
		mem.AddProduct(internal.Product{
			ID: 100 + i, SupplierID: i, Name: "Portland Cement OPC 53", Category: "cement",
			Price: 300 + float64(i), Stock: 100, Rating: 4.0,
			Status: internal.ProductApproved, IsActive: true,
		})
	}

	ranker := NewRanker(mem, mem, rankingRules(t), zap.NewNop())
	candidates, err := ranker.Rank(context.Background(), internal.NormalizedLineItem{
		NormalizedName: "Portland Cement", Category: "cement",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 10 {
		t.Fatalf("len=%d", len(candidates))
	}
	// Cheapest suppliers survive the cut.
	if candidates[0].SupplierID != 1 {
		t.Fatalf("first=%d", candidates[0].SupplierID)
	}
}
