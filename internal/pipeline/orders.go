package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildmart/internal"
)

// BOQMarker closes out a submission once its orders exist.
type BOQMarker interface {
	MarkBOQCompleted(ctx context.Context, boqID int64, note string) error
}

// SelectedItem pairs a normalized line item with the vendor the caller
// picked for it. A zero SupplierID means no selection; such items are
// silently dropped from grouping.
type SelectedItem struct {
	Item       internal.NormalizedLineItem
	SupplierID int64
}

// Synthesizer turns per-item vendor selections into purchase orders, one
// per vendor group. Resolution is all-or-nothing: if any selected item
// fails to resolve to a product of its vendor, no order is created at all.
// A purchase order with missing line items is worse than a rejected
// request.
type Synthesizer struct {
	catalog   CatalogLookup
	suppliers SupplierDirectory
	orders    OrderSink
	notifier  Notifier
	marker    BOQMarker
	log       *zap.Logger
	now       func() time.Time
}

func NewSynthesizer(catalog CatalogLookup, suppliers SupplierDirectory, orders OrderSink, notifier Notifier, log *zap.Logger) *Synthesizer {
	return &Synthesizer{
		catalog:   catalog,
		suppliers: suppliers,
		orders:    orders,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// WithBOQMarker links created orders back to their submission.
func (s *Synthesizer) WithBOQMarker(marker BOQMarker) *Synthesizer {
	s.marker = marker
	return s
}

type resolvedGroup struct {
	group internal.VendorGroup
	items []internal.OrderLineItem
}

// CreateOrders runs the full synthesis: group by vendor, resolve every
// item against the live catalog, then create one order per group.
func (s *Synthesizer) CreateOrders(ctx context.Context, buyerID string, boqID int64, selections []SelectedItem) ([]internal.PurchaseOrder, error) {
	byVendor := map[int64][]internal.NormalizedLineItem{}
	for _, sel := range selections {
		if sel.SupplierID <= 0 {
			continue
		}
		byVendor[sel.SupplierID] = append(byVendor[sel.SupplierID], sel.Item)
	}
	if len(byVendor) == 0 {
		return nil, nil
	}

	vendorIDs := make([]int64, 0, len(byVendor))
	for id := range byVendor {
		vendorIDs = append(vendorIDs, id)
	}
	sort.Slice(vendorIDs, func(i, j int) bool { return vendorIDs[i] < vendorIDs[j] })

	// Resolve everything before creating anything.
	groups := make([]resolvedGroup, 0, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		group, err := s.resolveGroup(ctx, vendorID, byVendor[vendorID])
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	created := make([]internal.PurchaseOrder, 0, len(groups))
	for _, rg := range groups {
		number, err := s.nextOrderNumber(ctx)
		if err != nil {
			return created, fmt.Errorf("assign order number: %w", err)
		}

		order := internal.PurchaseOrder{
			OrderNumber: number,
			SupplierID:  rg.group.VendorID,
			BuyerID:     buyerID,
			LineItems:   rg.items,
			TotalAmount: rg.group.Total,
			Status:      internal.OrderPending,
		}
		order, err = s.orders.CreateOrder(ctx, order, boqID)
		if err != nil {
			return created, fmt.Errorf("create order for supplier %d: %w", rg.group.VendorID, err)
		}
		created = append(created, order)

		s.notifySupplier(ctx, order, rg.group.VendorName)
	}

	if boqID > 0 && s.marker != nil {
		note := fmt.Sprintf("created %d purchase order(s)", len(created))
		if err := s.marker.MarkBOQCompleted(ctx, boqID, note); err != nil && s.log != nil {
			s.log.Warn("mark boq completed failed", zap.Int64("boq", boqID), zap.Error(err))
		}
	}

	return created, nil
}

// resolveGroup resolves every line item of one vendor against the catalog,
// re-reading current prices. Exact product references win; otherwise a
// case-insensitive name match scoped to the vendor.
func (s *Synthesizer) resolveGroup(ctx context.Context, vendorID int64, items []internal.NormalizedLineItem) (resolvedGroup, error) {
	supplier, err := s.suppliers.FindSupplierByID(ctx, vendorID)
	if err != nil {
		return resolvedGroup{}, err
	}
	if supplier == nil {
		return resolvedGroup{}, &InvalidVendorReferenceError{VendorID: vendorID}
	}

	group := internal.VendorGroup{VendorID: vendorID, VendorName: supplier.Name}
	lines := make([]internal.OrderLineItem, 0, len(items))

	for _, item := range items {
		product, err := s.resolveProduct(ctx, vendorID, item)
		if err != nil {
			return resolvedGroup{}, err
		}

		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		total := quantity * product.Price

		group.Items = append(group.Items, internal.GroupedItem{
			Name:      product.Name,
			Quantity:  quantity,
			Price:     product.Price,
			Unit:      product.Unit,
			ProductID: product.ID,
		})
		group.Total += total

		lines = append(lines, internal.OrderLineItem{
			ProductID:  product.ID,
			Name:       product.Name,
			Quantity:   quantity,
			UnitPrice:  product.Price,
			TotalPrice: total,
		})
	}

	return resolvedGroup{group: group, items: lines}, nil
}

func (s *Synthesizer) resolveProduct(ctx context.Context, vendorID int64, item internal.NormalizedLineItem) (*internal.Product, error) {
	if item.ProductID != nil {
		product, err := s.catalog.FindProductByID(ctx, *item.ProductID)
		if err != nil {
			return nil, err
		}
		if product != nil && product.SupplierID == vendorID && product.IsActive && product.Status == internal.ProductApproved {
			return product, nil
		}
	}

	name := item.NormalizedName
	if strings.TrimSpace(name) == "" {
		name = item.RawName
	}
	candidates, err := s.catalog.FindProductsByNameOrCategory(ctx, name, "", vendorID)
	if err != nil {
		return nil, err
	}
	for _, p := range candidates {
		if p.IsActive && p.Status == internal.ProductApproved {
			return &p, nil
		}
	}

	return nil, &VendorResolutionError{ItemName: item.RawName, VendorID: vendorID}
}

func (s *Synthesizer) nextOrderNumber(ctx context.Context) (string, error) {
	now := s.now().UTC()
	seq, err := s.orders.NextOrderSequence(ctx, now.Year(), int(now.Month()))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD%d%02d%04d", now.Year(), int(now.Month()), seq), nil
}

// notifySupplier is fire-and-forget. A notification failure never rolls
// back an already created order.
func (s *Synthesizer) notifySupplier(ctx context.Context, order internal.PurchaseOrder, vendorName string) {
	if s.notifier == nil {
		return
	}
	userID := fmt.Sprintf("supplier:%d", order.SupplierID)
	title := "New purchase order"
	message := fmt.Sprintf("Purchase order %s for %.2f", order.OrderNumber, order.TotalAmount)
	metadata := map[string]any{
		"orderNumber": order.OrderNumber,
		"totalAmount": order.TotalAmount,
		"lineItems":   len(order.LineItems),
	}
	if err := s.notifier.Notify(ctx, userID, "order_created", title, message, metadata); err != nil && s.log != nil {
		s.log.Warn("supplier notification failed",
			zap.String("order", order.OrderNumber),
			zap.String("supplier", vendorName),
			zap.Error(err))
	}
}
