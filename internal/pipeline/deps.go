package pipeline

import (
	"context"

	"buildmart/internal"
)

// CatalogLookup is the product catalog collaborator. Implementations must
// return active products only, approved first, most recently updated first,
// and serve FindProductByID from current data so resolution-time prices are fresh.
type CatalogLookup interface {
	FindProductsByNameOrCategory(ctx context.Context, pattern, category string, supplierID int64) ([]internal.Product, error)
	FindProductByID(ctx context.Context, id int64) (*internal.Product, error)
}

// SupplierDirectory resolves supplier identities. FindSupplierByID returns nil, nil
// for an unknown supplier.
type SupplierDirectory interface {
	FindSupplierByID(ctx context.Context, id int64) (*internal.Supplier, error)
}

// OrderSink owns purchase order persistence. NextOrderSequence must assign
// per-month sequence numbers atomically.
type OrderSink interface {
	CreateOrder(ctx context.Context, order internal.PurchaseOrder, boqID int64) (internal.PurchaseOrder, error)
	NextOrderSequence(ctx context.Context, year, month int) (int, error)
	CountOrdersInMonth(ctx context.Context, year, month int) (int, error)
}

// Notifier delivers fire-and-forget notifications. Callers log and swallow
// failures; a notification error never rolls back the work that caused it.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, message string, metadata map[string]any) error
}
