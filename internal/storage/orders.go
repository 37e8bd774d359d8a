package storage

import (
	"context"
	"database/sql"
	"errors"

	"buildmart/internal"
)

// NextOrderSequence assigns the next per-month order sequence under a
// single atomic upsert, so two concurrent order creations can never share
// a number.
func (d *DB) NextOrderSequence(ctx context.Context, year, month int) (int, error) {
	var seq int
	err := d.conn.QueryRowContext(ctx, `
INSERT INTO order_counters (year, month, seq) VALUES (?, ?, 1)
ON CONFLICT(year, month) DO UPDATE SET seq = seq + 1
RETURNING seq
`, year, month).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (d *DB) CountOrdersInMonth(ctx context.Context, year, month int) (int, error) {
	var count int
	err := d.conn.QueryRowContext(ctx, `
SELECT COUNT(*) FROM orders
WHERE CAST(strftime('%Y', createdAt) AS INTEGER) = ? AND CAST(strftime('%m', createdAt) AS INTEGER) = ?
`, year, month).Scan(&count)
	return count, err
}

// CreateOrder persists the order, its line items, and the initial status
// history entry in one transaction.
func (d *DB) CreateOrder(ctx context.Context, order internal.PurchaseOrder, boqID int64) (internal.PurchaseOrder, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return internal.PurchaseOrder{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var boqRef any
	if boqID > 0 {
		boqRef = boqID
	}
	result, err := tx.ExecContext(ctx, `
INSERT INTO orders (orderNumber, supplierId, buyerId, boqId, totalAmount, status)
VALUES (?, ?, ?, ?, ?, ?)
`, order.OrderNumber, order.SupplierID, order.BuyerID, boqRef, order.TotalAmount, string(order.Status))
	if err != nil {
		return internal.PurchaseOrder{}, err
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		return internal.PurchaseOrder{}, err
	}

	for _, li := range order.LineItems {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO order_items (orderId, productId, name, quantity, unitPrice, totalPrice)
VALUES (?, ?, ?, ?, ?, ?)
`, orderID, li.ProductID, li.Name, li.Quantity, li.UnitPrice, li.TotalPrice); err != nil {
			return internal.PurchaseOrder{}, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO order_status_history (orderId, status, note) VALUES (?, ?, 'order created')
`, orderID, string(order.Status)); err != nil {
		return internal.PurchaseOrder{}, err
	}

	if err := tx.Commit(); err != nil {
		return internal.PurchaseOrder{}, err
	}

	order.ID = orderID
	return order, nil
}

func (d *DB) GetOrderByNumber(ctx context.Context, orderNumber string) (*internal.PurchaseOrder, error) {
	var order internal.PurchaseOrder
	err := d.conn.QueryRowContext(ctx, `
SELECT id, orderNumber, supplierId, buyerId, totalAmount, status, createdAt
FROM orders WHERE orderNumber = ?
`, orderNumber).Scan(&order.ID, &order.OrderNumber, &order.SupplierID, &order.BuyerID, &order.TotalAmount, &order.Status, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := d.conn.QueryContext(ctx, `
SELECT productId, COALESCE(name,''), quantity, unitPrice, totalPrice
FROM order_items WHERE orderId = ? ORDER BY id ASC
`, order.ID)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var li internal.OrderLineItem
		if err := items.Scan(&li.ProductID, &li.Name, &li.Quantity, &li.UnitPrice, &li.TotalPrice); err != nil {
			return nil, err
		}
		order.LineItems = append(order.LineItems, li)
	}
	if err := items.Err(); err != nil {
		return nil, err
	}

	history, err := d.conn.QueryContext(ctx, `
SELECT status, COALESCE(note,''), changedAt
FROM order_status_history WHERE orderId = ? ORDER BY id ASC
`, order.ID)
	if err != nil {
		return nil, err
	}
	defer history.Close()
	for history.Next() {
		var change internal.StatusChange
		if err := history.Scan(&change.Status, &change.Note, &change.ChangedAt); err != nil {
			return nil, err
		}
		order.History = append(order.History, change)
	}
	if err := history.Err(); err != nil {
		return nil, err
	}

	return &order, nil
}

// UpdateOrderStatus transitions an order and appends to its history. The
// history is append-only; prior entries are never rewritten.
func (d *DB) UpdateOrderStatus(ctx context.Context, orderNumber string, status internal.OrderStatus, note string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var orderID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE orderNumber = ?`, orderNumber).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.New("order not found: " + orderNumber)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(status), orderID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO order_status_history (orderId, status, note) VALUES (?, ?, ?)
`, orderID, string(status), note); err != nil {
		return err
	}

	return tx.Commit()
}

// Notify implements the notification sink by recording an in-app
// notification row. Callers treat failures as non-fatal.
func (d *DB) Notify(ctx context.Context, userID, kind, title, message string, metadata map[string]any) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO notifications (userId, kind, title, message, metadataJson) VALUES (?, ?, ?, ?, ?)
`, userID, kind, title, message, marshalJSON(metadata))
	return err
}

func (d *DB) ListNotifications(ctx context.Context, userID string, limit int) ([]internal.Notification, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, userId, kind, COALESCE(title,''), COALESCE(message,''), createdAt
FROM notifications WHERE userId = ? ORDER BY id DESC LIMIT ?
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Notification
	for rows.Next() {
		var n internal.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
