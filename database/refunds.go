package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"petshop/model"
)

const refundColumns = `
	r.id, r.order_id, r.amount_cents, r.reason, r.status, r.response,
	r.previous_status, r.gateway_refund_id, r.created_at, r.updated_at`

func InsertRefundInTx(tx *sqlx.Tx, r *model.Refund) error {
	const q = `
		INSERT INTO refunds (order_id, amount_cents, reason, status, previous_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	if r.Status == "" {
		r.Status = model.RefundPending
	}
	ts := now()
	if err := tx.Get(&r.ID, tx.Rebind(q), r.OrderID, r.AmountCents, r.Reason, r.Status, r.PreviousStatus, ts, ts); err != nil {
		return fmt.Errorf("failed to insert refund for order %d: %w", r.OrderID, err)
	}
	r.CreatedAt, r.UpdatedAt = ts, ts
	return nil
}

func GetRefund(dbtx DBTX, id int64) (*model.Refund, error) {
	var r model.Refund
	q := dbtx.Rebind(`SELECT ` + refundColumns + ` FROM refunds r WHERE r.id = ?`)
	if err := dbtx.Get(&r, q, id); err != nil {
		return nil, lookupErr(err, "refund", id)
	}
	return &r, nil
}

func ListRefundsByOrder(dbtx DBTX, orderID int64) ([]model.Refund, error) {
	refunds := []model.Refund{}
	q := dbtx.Rebind(`SELECT ` + refundColumns + ` FROM refunds r WHERE r.order_id = ? ORDER BY r.created_at DESC, r.id DESC`)
	if err := dbtx.Select(&refunds, q, orderID); err != nil {
		return nil, fmt.Errorf("failed to list refunds of order %d: %w", orderID, err)
	}
	return refunds, nil
}

// ListRefunds is the back-office queue, newest first.
func ListRefunds(dbtx DBTX) ([]model.RefundView, error) {
	q := `SELECT ` + refundColumns + `, o.order_no, u.name AS user_name, u.email AS user_email
		FROM refunds r
		JOIN orders o ON o.id = r.order_id
		JOIN users u ON u.id = o.user_id
		ORDER BY r.created_at DESC, r.id DESC`
	refunds := []model.RefundView{}
	if err := dbtx.Select(&refunds, q); err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

func HasPendingRefund(dbtx DBTX, orderID int64) (bool, error) {
	var n int
	q := dbtx.Rebind(`SELECT COUNT(*) FROM refunds WHERE order_id = ? AND status = ?`)
	if err := dbtx.Get(&n, q, orderID, model.RefundPending); err != nil {
		return false, fmt.Errorf("failed to check pending refunds of order %d: %w", orderID, err)
	}
	return n > 0, nil
}

// DecideRefundInTx records the admin decision on a pending refund. A refund
// that was already decided yields model.ErrConflict.
func DecideRefundInTx(tx *sqlx.Tx, id int64, status, response, gatewayRefundID string) error {
	const q = `
		UPDATE refunds SET status = ?, response = ?, gateway_refund_id = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	res, err := tx.Exec(tx.Rebind(q), status, response, gatewayRefundID, now(), id, model.RefundPending)
	if err != nil {
		return fmt.Errorf("failed to update refund %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update refund %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("refund %d already processed: %w", id, model.ErrConflict)
	}
	return nil
}

func CountPendingRefunds(ctx context.Context, dbtx DBTX) (int, error) {
	var n int
	if err := dbtx.GetContext(ctx, &n, dbtx.Rebind(`SELECT COUNT(*) FROM refunds WHERE status = ?`), model.RefundPending); err != nil {
		return 0, fmt.Errorf("failed to count pending refunds: %w", err)
	}
	return n, nil
}
