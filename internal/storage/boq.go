package storage

import (
	"context"
	"database/sql"
	"errors"

	"buildmart/internal"
)

func (d *DB) CreateBOQ(ctx context.Context, buyerID, source, reference string) (internal.BOQRow, error) {
	result, err := d.conn.ExecContext(ctx, `
INSERT INTO boqs (buyerId, source, reference, status) VALUES (?, ?, ?, 'pending')
`, buyerID, source, reference)
	if err != nil {
		return internal.BOQRow{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return internal.BOQRow{}, err
	}
	row, err := d.GetBOQ(ctx, id)
	if err != nil {
		return internal.BOQRow{}, err
	}
	if row == nil {
		return internal.BOQRow{}, errors.New("failed to create boq")
	}
	return *row, nil
}

func (d *DB) GetBOQ(ctx context.Context, id int64) (*internal.BOQRow, error) {
	var row internal.BOQRow
	err := d.conn.QueryRowContext(ctx, `
SELECT id, buyerId, source, COALESCE(reference,''), status, createdAt, updatedAt
FROM boqs WHERE id = ?
`, id).Scan(&row.ID, &row.BuyerID, &row.Source, &row.Reference, &row.Status, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) UpdateBOQStatus(ctx context.Context, id int64, status internal.BOQStatus) error {
	_, err := d.conn.ExecContext(ctx, `
UPDATE boqs SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?
`, string(status), id)
	return err
}

// MarkBOQCompleted closes a submission and records the reason.
func (d *DB) MarkBOQCompleted(ctx context.Context, boqID int64, note string) error {
	if err := d.UpdateBOQStatus(ctx, boqID, internal.BOQCompleted); err != nil {
		return err
	}
	return d.AppendBOQLog(ctx, boqID, note)
}

func (d *DB) AppendBOQLog(ctx context.Context, boqID int64, message string) error {
	_, err := d.conn.ExecContext(ctx, `INSERT INTO boq_logs (boqId, message) VALUES (?, ?)`, boqID, message)
	return err
}

func (d *DB) ClearBOQItems(ctx context.Context, boqID int64) error {
	_, err := d.conn.ExecContext(ctx, `DELETE FROM boq_items WHERE boqId = ?`, boqID)
	return err
}

// InsertBOQItem persists one normalized item alongside the raw source line
// it came from, so review sheets can show what the buyer actually wrote.
func (d *DB) InsertBOQItem(ctx context.Context, boqID int64, item internal.NormalizedLineItem, rawLine string) (int64, error) {
	var supplierName, supplierLocation, supplierCompany *string
	if item.Supplier != nil {
		supplierName = &item.Supplier.Name
		supplierLocation = &item.Supplier.Location
		supplierCompany = &item.Supplier.Company
	}

	result, err := d.conn.ExecContext(ctx, `
INSERT INTO boq_items (
  boqId, lineNo, rawName, rawLine, normalizedName, quantity, unit, category, confidence,
  productId, supplierName, supplierLocation, supplierCompany, availableSuppliers, isAvailable
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, boqID, item.LineNo, item.RawName, rawLine, item.NormalizedName, item.Quantity, item.Unit, item.Category, item.Confidence,
		item.ProductID, supplierName, supplierLocation, supplierCompany, item.AvailableSuppliers, boolInt(item.IsAvailable))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) scanBOQItem(scan func(dest ...any) error) (internal.BOQItem, error) {
	var item internal.BOQItem
	var available int
	var supplierName, supplierLocation, supplierCompany *string
	err := scan(
		&item.ID, &item.BOQID, &item.LineNo, &item.RawName, &item.NormalizedName,
		&item.Quantity, &item.Unit, &item.Category, &item.Confidence,
		&item.ProductID, &supplierName, &supplierLocation, &supplierCompany,
		&item.AvailableSuppliers, &available, &item.SelectedSupplierID,
	)
	if err != nil {
		return internal.BOQItem{}, err
	}
	item.IsAvailable = available != 0
	if supplierName != nil || supplierCompany != nil {
		info := internal.SupplierInfo{}
		if supplierName != nil {
			info.Name = *supplierName
		}
		if supplierLocation != nil {
			info.Location = *supplierLocation
		}
		if supplierCompany != nil {
			info.Company = *supplierCompany
		}
		item.Supplier = &info
	}
	return item, nil
}

const boqItemColumns = `
id, boqId, lineNo, rawName, normalizedName, quantity, COALESCE(unit,''), COALESCE(category,''), confidence,
productId, supplierName, supplierLocation, supplierCompany, availableSuppliers, isAvailable, selectedSupplierId`

func (d *DB) ListBOQItems(ctx context.Context, boqID int64) ([]internal.BOQItem, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+boqItemColumns+` FROM boq_items WHERE boqId = ? ORDER BY lineNo ASC`, boqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.BOQItem
	for rows.Next() {
		item, err := d.scanBOQItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DB) GetBOQItem(ctx context.Context, itemID int64) (*internal.BOQItem, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+boqItemColumns+` FROM boq_items WHERE id = ?`, itemID)
	item, err := d.scanBOQItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *DB) SelectItemSupplier(ctx context.Context, itemID, supplierID int64) error {
	result, err := d.conn.ExecContext(ctx, `
UPDATE boq_items SET selectedSupplierId = ? WHERE id = ?
`, supplierID, itemID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("boq item not found")
	}
	return nil
}

// GetReviewRows assembles the per-item normalization report for one BOQ,
// best matches first so reviewers see the confident lines on top.
func (d *DB) GetReviewRows(ctx context.Context, boqID int64) ([]internal.ReviewExportRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT
  i.lineNo, b.source, i.rawName, COALESCE(i.rawLine,''), i.normalizedName, i.quantity, COALESCE(i.unit,''), COALESCE(i.category,''),
  i.confidence, i.productId, p.name, i.supplierName, i.availableSuppliers, i.isAvailable
FROM boq_items i
JOIN boqs b ON b.id = i.boqId
LEFT JOIN products p ON p.id = i.productId
WHERE i.boqId = ?
ORDER BY i.confidence DESC, i.lineNo ASC
`, boqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReviewExportRow
	for rows.Next() {
		var row internal.ReviewExportRow
		var available int
		if err := rows.Scan(
			&row.LineNo, &row.Source, &row.RawName, &row.RawLine, &row.NormalizedName, &row.Quantity, &row.Unit, &row.Category,
			&row.Confidence, &row.ProductID, &row.ProductName, &row.SupplierName, &row.AvailableSuppliers, &available,
		); err != nil {
			return nil, err
		}
		row.IsAvailable = available != 0
		out = append(out, row)
	}
	return out, rows.Err()
}
