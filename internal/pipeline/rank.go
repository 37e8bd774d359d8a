package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/config"
)

// Ranker scores and orders the suppliers able to fulfil a normalized line
// item. Price dominates the blend; rating and stock reward reliability.
type Ranker struct {
	catalog   CatalogLookup
	suppliers SupplierDirectory
	rules     config.RankingRules
	log       *zap.Logger
}

func NewRanker(catalog CatalogLookup, suppliers SupplierDirectory, rules config.RankingRules, log *zap.Logger) *Ranker {
	return &Ranker{catalog: catalog, suppliers: suppliers, rules: rules, log: log}
}

type supplierAggregate struct {
	supplierID  int64
	bestPrice   float64
	bestRating  float64
	totalStock  float64
	bestProduct internal.Product
}

// Rank returns the top candidates, most preferred first. An empty result
// means no approved, priced supplier exists for the item; that is not an
// error, the caller reads it as "no sourcing option".
func (r *Ranker) Rank(ctx context.Context, item internal.NormalizedLineItem) ([]internal.VendorCandidate, error) {
	description := item.NormalizedName
	if description == "" {
		description = item.RawName
	}

	matches := searchCatalog(ctx, r.catalog, r.log, description, item.Category, 0)
	if len(matches) == 0 {
		return []internal.VendorCandidate{}, nil
	}

	aggregates := map[int64]*supplierAggregate{}
	for _, p := range matches {
		if p.Status != internal.ProductApproved || !p.IsActive {
			continue
		}
		agg, ok := aggregates[p.SupplierID]
		if !ok {
			agg = &supplierAggregate{supplierID: p.SupplierID, bestPrice: p.Price, bestRating: p.Rating, bestProduct: p}
			aggregates[p.SupplierID] = agg
		} else {
			if p.Price < agg.bestPrice {
				agg.bestPrice = p.Price
				agg.bestProduct = p
			}
			if p.Rating > agg.bestRating {
				agg.bestRating = p.Rating
			}
		}
		agg.totalStock += p.Stock
	}

	candidates := make([]internal.VendorCandidate, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.bestProduct.Status != internal.ProductApproved || agg.bestPrice <= 0 {
			continue
		}

		candidate := internal.VendorCandidate{
			SupplierID:   agg.supplierID,
			Price:        agg.bestPrice,
			Rating:       agg.bestRating,
			Stock:        agg.totalStock,
			LeadTimeDays: leadTimeDays(agg.totalStock),
			RankScore:    r.score(agg),
			ProductID:    agg.bestProduct.ID,
			Status:       agg.bestProduct.Status,
		}
		if supplier, err := r.suppliers.FindSupplierByID(ctx, agg.supplierID); err == nil && supplier != nil {
			candidate.Name = supplier.Name
			candidate.Company = supplier.Company
			candidate.Location = supplier.Address
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		approvedI := candidates[i].Status == internal.ProductApproved
		approvedJ := candidates[j].Status == internal.ProductApproved
		if approvedI != approvedJ {
			return approvedI
		}
		return candidates[i].RankScore > candidates[j].RankScore
	})

	if max := r.rules.MaxCandidates; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates, nil
}

func (r *Ranker) score(agg *supplierAggregate) float64 {
	priceScore := r.rules.PriceBase - agg.bestPrice/r.rules.PriceDivisor
	ratingScore := agg.bestRating / 5 * r.rules.RatingWeight
	stockScore := agg.totalStock / r.rules.StockDivisor * r.rules.StockWeight
	if stockScore > r.rules.StockWeight {
		stockScore = r.rules.StockWeight
	}
	return priceScore + ratingScore + stockScore
}

// leadTimeDays is a stepped estimate from available stock: well-stocked
// suppliers ship fast.
func leadTimeDays(totalStock float64) int {
	switch {
	case totalStock > 500:
		return 2
	case totalStock > 100:
		return 3
	default:
		return 5
	}
}
