package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"petshop/model"
)

const productColumns = `
	p.id, p.name, p.description, p.price_cents, p.image_url, p.featured,
	p.stock, p.category_id, p.created_at, p.updated_at`

const catalogSelect = `
	SELECT ` + productColumns + `,
		c.id AS "category.id", c.name AS "category.name", c.slug AS "category.slug",
		c.description AS "category.description", c.image_url AS "category.image_url"
	FROM products p
	JOIN categories c ON c.id = p.category_id`

// ProductFilter narrows ListProducts. Zero values mean "no filter".
type ProductFilter struct {
	CategorySlug string
	CategoryID   int64
	Featured     *bool
	Query        string
	Limit        int
}

func ListProducts(dbtx DBTX, f ProductFilter) ([]model.CatalogProduct, error) {
	var where []string
	var args []interface{}
	if f.CategorySlug != "" {
		where = append(where, "c.slug = ?")
		args = append(args, f.CategorySlug)
	}
	if f.CategoryID > 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Featured != nil {
		where = append(where, "p.featured = ?")
		args = append(args, *f.Featured)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, "(LOWER(p.name) LIKE ? OR LOWER(p.description) LIKE ?)")
		args = append(args, like, like)
	}

	var sb strings.Builder
	sb.WriteString(catalogSelect)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY p.created_at DESC, p.id DESC")
	if f.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", f.Limit))
	}

	var products []model.CatalogProduct
	if err := dbtx.Select(&products, dbtx.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func GetProduct(dbtx DBTX, id int64) (*model.CatalogProduct, error) {
	var p model.CatalogProduct
	if err := dbtx.Get(&p, dbtx.Rebind(catalogSelect+" WHERE p.id = ?"), id); err != nil {
		return nil, lookupErr(err, "product", id)
	}
	return &p, nil
}

// InsertProduct stores p and fills in its id and timestamps.
func InsertProduct(dbtx DBTX, p *model.Product) error {
	const q = `
		INSERT INTO products (name, description, price_cents, image_url, featured, stock, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	ts := now()
	err := dbtx.Get(&p.ID, dbtx.Rebind(q),
		p.Name, p.Description, p.PriceCents, p.ImageURL, p.Featured, p.Stock, p.CategoryID, ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %q already exists: %w", p.Name, model.ErrConflict)
		}
		return fmt.Errorf("failed to insert product %s: %w", p.Name, err)
	}
	p.CreatedAt, p.UpdatedAt = ts, ts
	return nil
}

// UpdateProduct writes every editable column of p.
func UpdateProduct(dbtx DBTX, p *model.Product) error {
	const q = `
		UPDATE products SET
			name = ?, description = ?, price_cents = ?, image_url = ?,
			featured = ?, stock = ?, category_id = ?, updated_at = ?
		WHERE id = ?`
	ts := now()
	res, err := dbtx.Exec(dbtx.Rebind(q),
		p.Name, p.Description, p.PriceCents, p.ImageURL, p.Featured, p.Stock, p.CategoryID, ts, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %q already exists: %w", p.Name, model.ErrConflict)
		}
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	if err := expectRow(res, "product", p.ID); err != nil {
		return err
	}
	p.UpdatedAt = ts
	return nil
}

func DeleteProduct(dbtx DBTX, id int64) error {
	res, err := dbtx.Exec(dbtx.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return expectRow(res, "product", id)
}

// ReserveStockInTx takes qty units off the shelf. It fails with
// model.ErrOutOfStock instead of letting stock go negative.
func ReserveStockInTx(tx *sqlx.Tx, productID int64, qty int) error {
	const q = `UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`
	res, err := tx.Exec(tx.Rebind(q), qty, now(), productID, qty)
	if err != nil {
		return fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", productID, model.ErrOutOfStock)
	}
	return nil
}

// RestoreStockInTx puts the items of a cancelled or refunded order back on
// the shelf. Items whose product was deleted are skipped.
func RestoreStockInTx(tx *sqlx.Tx, items []model.OrderItem) error {
	const q = `UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`
	ts := now()
	for _, it := range items {
		if it.ProductID == nil {
			continue
		}
		if _, err := tx.Exec(tx.Rebind(q), it.Quantity, ts, *it.ProductID); err != nil {
			return fmt.Errorf("failed to restore stock for product %d: %w", *it.ProductID, err)
		}
	}
	return nil
}

// UpsertProductInTx inserts a product or refreshes the one with the same
// name. It reports whether a new row was created.
func UpsertProductInTx(tx *sqlx.Tx, p *model.Product) (bool, error) {
	var existing int64
	err := tx.Get(&existing, tx.Rebind(`SELECT id FROM products WHERE name = ?`), p.Name)
	if err == nil {
		p.ID = existing
		return false, UpdateProduct(tx, p)
	}
	if lerr := lookupErr(err, "product", p.Name); !isNotFound(lerr) {
		return false, lerr
	}
	return true, InsertProduct(tx, p)
}

func CountProducts(ctx context.Context, dbtx DBTX) (int, error) {
	var n int
	if err := dbtx.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}
