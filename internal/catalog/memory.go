// Package catalog provides an in-memory catalog lookup backed by a simple
// token index. It serves small deployments and tests; production setups
// use the sqlite-backed storage layer instead.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"buildmart/internal"
	"buildmart/internal/util"
)

type Memory struct {
	mu            sync.RWMutex
	productsByID  map[int64]internal.Product
	suppliersByID map[int64]internal.Supplier
	tokenToIDs    map[string]map[int64]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		productsByID:  map[int64]internal.Product{},
		suppliersByID: map[int64]internal.Supplier{},
		tokenToIDs:    map[string]map[int64]struct{}{},
	}
}

func (m *Memory) AddSupplier(s internal.Supplier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppliersByID[s.ID] = s
}

func (m *Memory) AddProduct(p internal.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productsByID[p.ID] = p
	for _, token := range util.Tokenize(p.Name + " " + p.Description) {
		if _, ok := m.tokenToIDs[token]; !ok {
			m.tokenToIDs[token] = map[int64]struct{}{}
		}
		m.tokenToIDs[token][p.ID] = struct{}{}
	}
}

func (m *Memory) FindProductByID(ctx context.Context, id int64) (*internal.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.productsByID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) FindSupplierByID(ctx context.Context, id int64) (*internal.Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.suppliersByID[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// FindProductsByNameOrCategory matches products whose name or description
// contains the pattern (case-insensitive), whose indexed tokens cover every
// pattern token, or whose category equals the given one. The token path
// catches reordered words ("cement portland") that a substring miss would
// otherwise drop. Approved products sort first, mirrors the sqlite query.
func (m *Memory) FindProductsByNameOrCategory(ctx context.Context, pattern, category string, supplierID int64) ([]internal.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(pattern))
	needleTokens := util.Tokenize(needle)
	var out []internal.Product
	for _, p := range m.productsByID {
		if supplierID > 0 && p.SupplierID != supplierID {
			continue
		}
		matched := false
		if needle != "" {
			haystack := strings.ToLower(p.Name + " " + p.Description)
			matched = strings.Contains(haystack, needle)
		}
		if !matched && len(needleTokens) > 0 {
			matched = m.indexCovers(p.ID, needleTokens)
		}
		if !matched && category != "" && p.Category == category {
			matched = true
		}
		if matched {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		approvedI := out[i].Status == internal.ProductApproved
		approvedJ := out[j].Status == internal.ProductApproved
		if approvedI != approvedJ {
			return approvedI
		}
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// indexCovers reports whether every query token is indexed for the product.
// Requiring full coverage keeps junk tokens from dragging in loose matches.
func (m *Memory) indexCovers(productID int64, tokens []string) bool {
	for _, token := range tokens {
		if _, ok := m.tokenToIDs[token][productID]; !ok {
			return false
		}
	}
	return true
}
