package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/ai"
	"buildmart/internal/config"
	"buildmart/internal/util"
)

// Normalizer maps free-text descriptions to catalog products. A failed or
// empty lookup is never an error: the item comes back with the cleaned raw
// name and a low fixed confidence for manual review.
type Normalizer struct {
	catalog         CatalogLookup
	suppliers       SupplierDirectory
	rules           config.Rules
	gen             ai.TextGenerator
	assistThreshold float64
	log             *zap.Logger
}

func NewNormalizer(catalog CatalogLookup, suppliers SupplierDirectory, rules config.Rules, log *zap.Logger) *Normalizer {
	return &Normalizer{catalog: catalog, suppliers: suppliers, rules: rules, log: log}
}

// WithAssist enables the text-generation fallback for descriptions that
// match nothing on their own.
func (n *Normalizer) WithAssist(gen ai.TextGenerator, threshold float64) *Normalizer {
	n.gen = gen
	n.assistThreshold = threshold
	return n
}

func (n *Normalizer) Normalize(ctx context.Context, raw internal.RawLineItem) internal.NormalizedLineItem {
	tokens := util.Tokenize(raw.Description)
	category := n.rules.GuessCategory(tokens)

	matches := searchCatalog(ctx, n.catalog, n.log, raw.Description, category, 0)
	if len(matches) == 0 && n.gen != nil {
		matches = n.assistSearch(ctx, raw.Description, category)
	}

	item := internal.NormalizedLineItem{
		LineNo:   raw.LineNo,
		RawName:  raw.Description,
		Quantity: raw.Quantity,
		Unit:     raw.Unit,
		Category: category,
	}

	if len(matches) == 0 {
		item.NormalizedName = util.CleanDescription(raw.Description)
		item.Confidence = 0.30
		if category != "other" {
			item.Confidence = 0.40
		}
		item.IsAvailable = false
		return item
	}

	best := matches[0]
	item.NormalizedName = best.Name
	item.ProductID = util.Int64Ptr(best.ID)
	item.Confidence = util.MatchConfidence(raw.Description, best.Name)
	item.IsAvailable = true
	item.AvailableSuppliers = countDistinctSuppliers(matches)
	item.Supplier = n.supplierInfo(ctx, best.SupplierID)

	return item
}

func (n *Normalizer) assistSearch(ctx context.Context, description, category string) []internal.Product {
	prompt := fmt.Sprintf(
		"Rewrite this construction material request as a short canonical trade name, nothing else: %q", description)
	suggestion, err := n.gen.GenerateContent(ctx, prompt)
	if err != nil {
		if n.log != nil {
			n.log.Warn("name assist failed", zap.Error(err))
		}
		return nil
	}
	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" || strings.EqualFold(suggestion, description) {
		return nil
	}

	matches := searchCatalog(ctx, n.catalog, n.log, suggestion, category, 0)
	out := matches[:0]
	for _, p := range matches {
		if util.MatchConfidence(description, p.Name) >= n.assistThreshold {
			out = append(out, p)
		}
	}
	return out
}

func (n *Normalizer) supplierInfo(ctx context.Context, supplierID int64) *internal.SupplierInfo {
	supplier, err := n.suppliers.FindSupplierByID(ctx, supplierID)
	if err != nil || supplier == nil {
		return nil
	}
	return &internal.SupplierInfo{Name: supplier.Name, Location: supplier.Address, Company: supplier.Company}
}

func countDistinctSuppliers(products []internal.Product) int {
	seen := map[int64]struct{}{}
	for _, p := range products {
		seen[p.SupplierID] = struct{}{}
	}
	return len(seen)
}
