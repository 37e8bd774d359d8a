package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/config"
)

// Advisor suggests cheaper or better-rated alternatives for a selected
// product. Purely advisory: nothing is persisted and identical catalog
// state always yields identical suggestions.
type Advisor struct {
	catalog   CatalogLookup
	suppliers SupplierDirectory
	rules     config.SubstitutionRules
	log       *zap.Logger
}

func NewAdvisor(catalog CatalogLookup, suppliers SupplierDirectory, rules config.SubstitutionRules, log *zap.Logger) *Advisor {
	return &Advisor{catalog: catalog, suppliers: suppliers, rules: rules, log: log}
}

func (a *Advisor) Suggest(ctx context.Context, productID int64) ([]internal.SubstitutionSuggestion, error) {
	current, err := a.catalog.FindProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("product %d not found", productID)
	}
	if current.Price <= 0 {
		return []internal.SubstitutionSuggestion{}, nil
	}

	alternatives, err := a.catalog.FindProductsByNameOrCategory(ctx, "", current.Category, 0)
	if err != nil {
		return nil, err
	}

	band := current.Price * a.rules.PriceBand
	eligible := alternatives[:0]
	for _, alt := range alternatives {
		if alt.ID == current.ID || alt.Status != internal.ProductApproved || !alt.IsActive {
			continue
		}
		if alt.Price <= 0 || alt.Price > band {
			continue
		}
		eligible = append(eligible, alt)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Price != eligible[j].Price {
			return eligible[i].Price < eligible[j].Price
		}
		return eligible[i].Rating > eligible[j].Rating
	})

	out := []internal.SubstitutionSuggestion{}
	for _, alt := range eligible {
		if len(out) >= a.rules.MaxSuggestions {
			break
		}

		savings := current.Price - alt.Price
		savingsPct := savings / current.Price

		reason := ""
		switch {
		case savingsPct >= a.rules.MinSavingsPct:
			reason = "Lower price"
		case math.Abs(savingsPct) <= a.rules.SimilarPricePct && alt.Rating > current.Rating+a.rules.RatingDelta:
			reason = "Better rating with similar price"
		default:
			continue
		}

		suggestion := internal.SubstitutionSuggestion{
			OriginalItem:   current.Name,
			OriginalPrice:  current.Price,
			SuggestedItem:  alt.Name,
			SuggestedPrice: alt.Price,
			ProductID:      alt.ID,
			SupplierID:     alt.SupplierID,
			Savings:        savings,
			SavingsPercent: savingsPct * 100,
			Reason:         reason,
		}
		if supplier, err := a.suppliers.FindSupplierByID(ctx, alt.SupplierID); err == nil && supplier != nil {
			suggestion.SupplierName = supplier.Name
		}
		out = append(out, suggestion)
	}

	return out, nil
}
