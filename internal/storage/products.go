package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"buildmart/internal"
)

func (d *DB) UpsertSupplier(ctx context.Context, s internal.Supplier) (int64, error) {
	if s.ID > 0 {
		_, err := d.conn.ExecContext(ctx, `
INSERT INTO suppliers (id, name, company, email, phone, address) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name=excluded.name, company=excluded.company, email=excluded.email,
  phone=excluded.phone, address=excluded.address
`, s.ID, s.Name, s.Company, s.Email, s.Phone, s.Address)
		return s.ID, err
	}

	result, err := d.conn.ExecContext(ctx, `
INSERT INTO suppliers (name, company, email, phone, address) VALUES (?, ?, ?, ?, ?)
`, s.Name, s.Company, s.Email, s.Phone, s.Address)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FindSupplierByID implements the supplier directory collaborator. Returns
// nil, nil when the supplier does not exist.
func (d *DB) FindSupplierByID(ctx context.Context, id int64) (*internal.Supplier, error) {
	var s internal.Supplier
	err := d.conn.QueryRowContext(ctx, `
SELECT id, name, COALESCE(company,''), COALESCE(email,''), COALESCE(phone,''), COALESCE(address,'')
FROM suppliers WHERE id = ?
`, id).Scan(&s.ID, &s.Name, &s.Company, &s.Email, &s.Phone, &s.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertProducts inserts or refreshes catalog records. Moderation status is
// set only on first insert; feed re-syncs never overwrite an approval.
func (d *DB) UpsertProducts(ctx context.Context, products []internal.Product) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO products (id, supplierId, name, description, category, price, unit, stock, rating, status, isActive, updatedAt, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  supplierId=excluded.supplierId,
  name=excluded.name,
  description=excluded.description,
  category=excluded.category,
  price=excluded.price,
  unit=excluded.unit,
  stock=excluded.stock,
  rating=excluded.rating,
  isActive=excluded.isActive,
  updatedAt=CURRENT_TIMESTAMP,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		var id any
		if p.ID > 0 {
			id = p.ID
		}
		status := p.Status
		if status == "" {
			status = internal.ProductPending
		}
		if _, err := stmt.ExecContext(ctx, id, p.SupplierID, p.Name, p.Description, p.Category, p.Price, p.Unit, p.Stock, p.Rating, string(status), boolInt(p.IsActive)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) SetProductStatus(ctx context.Context, productID int64, status internal.ProductStatus) error {
	result, err := d.conn.ExecContext(ctx, `
UPDATE products SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?
`, string(status), productID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("product not found")
	}
	return nil
}

// FindProductByID implements the catalog lookup collaborator. Always hits
// the store so callers see the current price and stock.
func (d *DB) FindProductByID(ctx context.Context, id int64) (*internal.Product, error) {
	var p internal.Product
	var active int
	err := d.conn.QueryRowContext(ctx, `
SELECT id, supplierId, name, COALESCE(description,''), category, price, COALESCE(unit,''), stock, rating, status, isActive, updatedAt
FROM products WHERE id = ?
`, id).Scan(&p.ID, &p.SupplierID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Unit, &p.Stock, &p.Rating, &p.Status, &active, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.IsActive = active != 0
	return &p, nil
}

// FindProductsByNameOrCategory searches active products whose name or
// description contains the pattern, or whose category equals the given
// category. supplierID narrows the search to one vendor when positive.
// Approved products sort first, then the most recently updated.
func (d *DB) FindProductsByNameOrCategory(ctx context.Context, pattern, category string, supplierID int64) ([]internal.Product, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))

	query := `
SELECT id, supplierId, name, COALESCE(description,''), category, price, COALESCE(unit,''), stock, rating, status, isActive, updatedAt
FROM products
WHERE isActive = 1`
	args := []any{}

	clauses := []string{}
	if pattern != "" {
		clauses = append(clauses, `(instr(lower(name), ?) > 0 OR instr(lower(description), ?) > 0)`)
		args = append(args, pattern, pattern)
	}
	if category != "" && category != "other" {
		clauses = append(clauses, `category = ?`)
		args = append(args, category)
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	query += ` AND (` + strings.Join(clauses, " OR ") + `)`

	if supplierID > 0 {
		query += ` AND supplierId = ?`
		args = append(args, supplierID)
	}
	query += `
ORDER BY CASE status WHEN 'approved' THEN 0 ELSE 1 END, updatedAt DESC
LIMIT 200`

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Product
	for rows.Next() {
		var p internal.Product
		var active int
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Unit, &p.Stock, &p.Rating, &p.Status, &active, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.IsActive = active != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func marshalJSON(v any) string {
	blob, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(blob)
}
