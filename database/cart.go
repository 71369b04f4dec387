package database

import (
	"fmt"

	"petshop/model"
)

const cartSelect = `
	SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at,
		p.id AS "product.id", p.name AS "product.name", p.description AS "product.description",
		p.price_cents AS "product.price_cents", p.image_url AS "product.image_url",
		p.featured AS "product.featured", p.stock AS "product.stock",
		p.category_id AS "product.category_id", p.created_at AS "product.created_at",
		p.updated_at AS "product.updated_at"
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id`

func ListCart(dbtx DBTX, userID int64) ([]model.CartLine, error) {
	var lines []model.CartLine
	q := dbtx.Rebind(cartSelect + ` WHERE ci.user_id = ? ORDER BY ci.created_at, ci.id`)
	if err := dbtx.Select(&lines, q, userID); err != nil {
		return nil, fmt.Errorf("failed to list cart of user %d: %w", userID, err)
	}
	return lines, nil
}

// GetCartLine returns the line only when it belongs to userID.
func GetCartLine(dbtx DBTX, userID, id int64) (*model.CartLine, error) {
	var line model.CartLine
	q := dbtx.Rebind(cartSelect + ` WHERE ci.id = ? AND ci.user_id = ?`)
	if err := dbtx.Get(&line, q, id, userID); err != nil {
		return nil, lookupErr(err, "cart item", id)
	}
	return &line, nil
}

// AddToCart adds qty of the product, incrementing an existing line.
func AddToCart(dbtx DBTX, userID, productID int64, qty int) (int64, error) {
	const q = `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + excluded.quantity
		RETURNING id`
	var id int64
	if err := dbtx.Get(&id, dbtx.Rebind(q), userID, productID, qty, now()); err != nil {
		return 0, fmt.Errorf("failed to add product %d to cart: %w", productID, err)
	}
	return id, nil
}

func SetCartQuantity(dbtx DBTX, userID, id int64, qty int) error {
	res, err := dbtx.Exec(dbtx.Rebind(`UPDATE cart_items SET quantity = ? WHERE id = ? AND user_id = ?`), qty, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update cart item %d: %w", id, err)
	}
	return expectRow(res, "cart item", id)
}

func DeleteCartItem(dbtx DBTX, userID, id int64) error {
	res, err := dbtx.Exec(dbtx.Rebind(`DELETE FROM cart_items WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item %d: %w", id, err)
	}
	return expectRow(res, "cart item", id)
}

// ClearCart empties the user's cart and returns the number of removed lines.
func ClearCart(dbtx DBTX, userID int64) (int64, error) {
	res, err := dbtx.Exec(dbtx.Rebind(`DELETE FROM cart_items WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart of user %d: %w", userID, err)
	}
	return res.RowsAffected()
}
