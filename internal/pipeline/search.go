package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/util"
)

// searchCatalog fans out one query per pattern: the full string, its
// singular/plural variants, each significant word, and finally the guessed
// category. The guess biases the search, it never gates it. Lookup errors
// are logged and skipped so one failing query never fails a line item.
func searchCatalog(ctx context.Context, catalog CatalogLookup, log *zap.Logger, description, category string, supplierID int64) []internal.Product {
	patterns := util.NameVariants(description)
	patterns = append(patterns, util.SignificantWords(description)...)

	seen := map[int64]struct{}{}
	var matches []internal.Product

	collect := func(products []internal.Product, err error) {
		if err != nil {
			if log != nil {
				log.Warn("catalog lookup failed", zap.Error(err))
			}
			return
		}
		for _, p := range products {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			matches = append(matches, p)
		}
	}

	for _, pattern := range patterns {
		products, err := catalog.FindProductsByNameOrCategory(ctx, pattern, "", supplierID)
		collect(products, err)
	}
	if category != "" && category != "other" {
		products, err := catalog.FindProductsByNameOrCategory(ctx, "", category, supplierID)
		collect(products, err)
	}

	rankMatches(matches)
	return matches
}

// rankMatches orders merged results the way a single catalog query would:
// approved first, then most recently updated.
func rankMatches(matches []internal.Product) {
	sort.SliceStable(matches, func(i, j int) bool {
		approvedI := matches[i].Status == internal.ProductApproved
		approvedJ := matches[j].Status == internal.ProductApproved
		if approvedI != approvedJ {
			return approvedI
		}
		return matches[i].UpdatedAt > matches[j].UpdatedAt
	})
}
