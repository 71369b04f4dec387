package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"petshop/model"
)

const orderColumns = `
	o.id, o.order_no, o.user_id, o.status, o.subtotal_cents, o.shipping_fee_cents,
	o.total_cents, o.recipient, o.address, o.phone, o.tracking_number,
	o.payment_intent_id, o.payment_method, o.currency, o.cancel_reason,
	o.created_at, o.updated_at`

const orderItemColumns = `id, order_id, product_id, product_name, image_url, quantity, price_cents`

/**
 * InsertOrderInTx stores the order header and its items. The order number
 * is drawn from the PO sequence in the same transaction.
 */
func InsertOrderInTx(tx *sqlx.Tx, o *model.Order) error {
	orderNo, err := NextOrderNoInTx(tx)
	if err != nil {
		return err
	}
	o.OrderNo = orderNo
	if o.Status == "" {
		o.Status = model.StatusPending
	}

	const q = `
		INSERT INTO orders (
			order_no, user_id, status, subtotal_cents, shipping_fee_cents, total_cents,
			recipient, address, phone, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	ts := now()
	err = tx.Get(&o.ID, tx.Rebind(q),
		o.OrderNo, o.UserID, o.Status, o.SubtotalCents, o.ShippingFeeCents, o.TotalCents,
		o.Recipient, o.Address, o.Phone, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.OrderNo, err)
	}
	o.CreatedAt, o.UpdatedAt = ts, ts

	stmt, err := tx.Prepare(tx.Rebind(`
		INSERT INTO order_items (order_id, product_id, product_name, image_url, quantity, price_cents)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`))
	if err != nil {
		return fmt.Errorf("failed to prepare order item insert statement: %w", err)
	}
	defer stmt.Close()

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := stmt.QueryRow(it.OrderID, it.ProductID, it.ProductName, it.ImageURL, it.Quantity, it.PriceCents).Scan(&it.ID); err != nil {
			return fmt.Errorf("failed to insert item %s of order %s: %w", it.ProductName, o.OrderNo, err)
		}
	}
	return nil
}

func GetOrder(dbtx DBTX, id int64) (*model.Order, error) {
	var o model.Order
	q := dbtx.Rebind(`SELECT ` + orderColumns + ` FROM orders o WHERE o.id = ?`)
	if err := dbtx.Get(&o, q, id); err != nil {
		return nil, lookupErr(err, "order", id)
	}
	return &o, nil
}

func GetOrderByPaymentIntent(dbtx DBTX, intentID string) (*model.Order, error) {
	var o model.Order
	q := dbtx.Rebind(`SELECT ` + orderColumns + ` FROM orders o WHERE o.payment_intent_id = ?`)
	if err := dbtx.Get(&o, q, intentID); err != nil {
		return nil, lookupErr(err, "order for payment intent", intentID)
	}
	return &o, nil
}

// GetOrderDetail returns the order with its items and refunds.
func GetOrderDetail(dbtx DBTX, id int64) (*model.Order, error) {
	o, err := GetOrder(dbtx, id)
	if err != nil {
		return nil, err
	}
	if o.Items, err = ListOrderItems(dbtx, o.ID); err != nil {
		return nil, err
	}
	if o.Refunds, err = ListRefundsByOrder(dbtx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func ListOrderItems(dbtx DBTX, orderID int64) ([]model.OrderItem, error) {
	items := []model.OrderItem{}
	q := dbtx.Rebind(`SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = ? ORDER BY id`)
	if err := dbtx.Select(&items, q, orderID); err != nil {
		return nil, fmt.Errorf("failed to list items of order %d: %w", orderID, err)
	}
	return items, nil
}

// itemsByOrder loads the items of several orders in one query.
func itemsByOrder(dbtx DBTX, ids []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT `+orderItemColumns+` FROM order_items WHERE order_id IN (?) ORDER BY order_id, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build order item query: %w", err)
	}
	var items []model.OrderItem
	if err := dbtx.Select(&items, dbtx.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	for _, it := range items {
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, nil
}

// ListOrdersByUser returns the user's orders newest first, with items.
func ListOrdersByUser(dbtx DBTX, userID int64) ([]model.Order, error) {
	orders := []model.Order{}
	q := dbtx.Rebind(`SELECT ` + orderColumns + ` FROM orders o WHERE o.user_id = ? ORDER BY o.created_at DESC, o.id DESC`)
	if err := dbtx.Select(&orders, q, userID); err != nil {
		return nil, fmt.Errorf("failed to list orders of user %d: %w", userID, err)
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := itemsByOrder(dbtx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = orderItemsOrEmpty(items[orders[i].ID])
	}
	return orders, nil
}

// ListOrders is the back-office listing. An empty status lists every order.
func ListOrders(dbtx DBTX, status string) ([]model.AdminOrder, error) {
	q := `SELECT ` + orderColumns + `, u.name AS user_name, u.email AS user_email
		FROM orders o
		JOIN users u ON u.id = o.user_id`
	var args []interface{}
	if status != "" {
		q += ` WHERE o.status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY o.created_at DESC, o.id DESC`

	orders := []model.AdminOrder{}
	if err := dbtx.Select(&orders, dbtx.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := itemsByOrder(dbtx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = orderItemsOrEmpty(items[orders[i].ID])
	}
	return orders, nil
}

func orderItemsOrEmpty(items []model.OrderItem) []model.OrderItem {
	if items == nil {
		return []model.OrderItem{}
	}
	return items
}

/**
 * TransitionOrder moves an order from one status to another. The UPDATE is
 * guarded by the expected current status so a concurrent change makes it
 * fail with model.ErrInvalidTransition instead of overwriting.
 */
func TransitionOrder(dbtx DBTX, id int64, from, to string) error {
	return updateOrderGuarded(dbtx, id, from, to, "", nil)
}

// ShipOrder records the tracking number and moves a paid order to shipped.
func ShipOrder(dbtx DBTX, id int64, trackingNumber string) error {
	return updateOrderGuarded(dbtx, id, model.StatusPaid, model.StatusShipped,
		"tracking_number = ?", []interface{}{trackingNumber})
}

// SetPaymentIntent stores the gateway intent and moves the order to
// payment_pending. Calling it on a payment_pending order replaces the intent.
func SetPaymentIntent(dbtx DBTX, id int64, from, intentID, method, currency string) error {
	return updateOrderGuarded(dbtx, id, from, model.StatusPaymentPending,
		"payment_intent_id = ?, payment_method = ?, currency = ?", []interface{}{intentID, method, currency})
}

// ReplacePaymentIntent points the order at another intent without changing
// its status.
func ReplacePaymentIntent(dbtx DBTX, id int64, status, intentID string) error {
	return updateOrderGuarded(dbtx, id, status, status,
		"payment_intent_id = ?", []interface{}{intentID})
}

// CancelOrder cancels an unpaid order and records why.
func CancelOrder(dbtx DBTX, id int64, from, reason string) error {
	return updateOrderGuarded(dbtx, id, from, model.StatusCancelled,
		"cancel_reason = ?", []interface{}{reason})
}

func updateOrderGuarded(dbtx DBTX, id int64, from, to, extraSet string, extraArgs []interface{}) error {
	if from != to && !model.CanTransition(from, to) {
		return fmt.Errorf("order %d cannot move from %s to %s: %w", id, from, to, model.ErrInvalidTransition)
	}
	set := "status = ?, updated_at = ?"
	if extraSet != "" {
		set += ", " + extraSet
	}
	args := append([]interface{}{to, now()}, extraArgs...)
	args = append(args, id, from)

	res, err := dbtx.Exec(dbtx.Rebind(`UPDATE orders SET `+set+` WHERE id = ? AND status = ?`), args...)
	if err != nil {
		return fmt.Errorf("failed to update order %d to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update order %d to %s: %w", id, to, err)
	}
	if n == 0 {
		return fmt.Errorf("order %d is no longer %s: %w", id, from, model.ErrInvalidTransition)
	}
	return nil
}

func CountOrders(ctx context.Context, dbtx DBTX) (int, error) {
	var n int
	if err := dbtx.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders`); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// RevenueRow is one captured order used by the sales charts.
type RevenueRow struct {
	TotalCents int64     `db:"total_cents"`
	CreatedAt  time.Time `db:"created_at"`
}

// ListRevenueSince returns the captured orders created at or after since.
func ListRevenueSince(dbtx DBTX, since time.Time) ([]RevenueRow, error) {
	q, args, err := sqlx.In(`
		SELECT total_cents, created_at FROM orders
		WHERE status IN (?) AND created_at >= ?
		ORDER BY created_at`, model.RevenueStatuses, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to build revenue query: %w", err)
	}
	var rows []RevenueRow
	if err := dbtx.Select(&rows, dbtx.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to list revenue: %w", err)
	}
	return rows, nil
}

// TotalRevenue sums every captured order.
func TotalRevenue(ctx context.Context, dbtx DBTX) (int64, error) {
	q, args, err := sqlx.In(`SELECT COALESCE(SUM(total_cents), 0) FROM orders WHERE status IN (?)`, model.RevenueStatuses)
	if err != nil {
		return 0, fmt.Errorf("failed to build revenue query: %w", err)
	}
	var total int64
	if err := dbtx.GetContext(ctx, &total, dbtx.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}
