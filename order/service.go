package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/database"
	"petshop/mappers"
	"petshop/model"
	"petshop/money"
	"petshop/respond"
)

// ItemRequest names a product and a quantity. Any price the client sends is
// ignored; prices come from the catalog.
type ItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateRequest is the checkout payload. Either AddressID or Address+Phone
// must be given. Without Items the user's cart is ordered.
type CreateRequest struct {
	AddressID string        `json:"addressId"`
	Recipient string        `json:"recipient"`
	Address   string        `json:"address"`
	Phone     string        `json:"phone"`
	Items     []ItemRequest `json:"items"`
	CartItems []ItemRequest `json:"cartItems"`
}

// mergeItems folds duplicate products together and orders them by product id
// so concurrent checkouts lock rows in the same order.
func mergeItems(items []ItemRequest) ([]ItemRequest, error) {
	qty := make(map[int64]int)
	for _, it := range items {
		if it.ProductID <= 0 || it.Quantity < 1 {
			return nil, respond.BadRequest("Invalid cart item data")
		}
		qty[it.ProductID] += it.Quantity
	}
	merged := make([]ItemRequest, 0, len(qty))
	for id, q := range qty {
		merged = append(merged, ItemRequest{ProductID: id, Quantity: q})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}

// Create places an order: it snapshots catalog prices, reserves stock and
// computes shipping, all in one transaction. The new order is pending.
func Create(db *sqlx.DB, user *model.User, req CreateRequest, rule money.ShippingRule) (*model.Order, error) {
	o := &model.Order{UserID: user.ID, Status: model.StatusPending}

	if req.AddressID != "" {
		a, err := database.GetAddress(db, req.AddressID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, respond.BadRequest("Address not found")
			}
			return nil, err
		}
		if a.UserID != user.ID {
			return nil, respond.BadRequest("Address not found")
		}
		o.Recipient, o.Address, o.Phone = a.Name, a.Line(), a.Phone
	} else {
		o.Recipient = strings.TrimSpace(req.Recipient)
		o.Address = strings.TrimSpace(req.Address)
		o.Phone = strings.TrimSpace(req.Phone)
		if o.Recipient == "" {
			o.Recipient = user.Name
		}
	}
	if o.Address == "" || o.Phone == "" {
		return nil, respond.BadRequest("Address and phone are required")
	}

	requested := req.Items
	if len(requested) == 0 {
		requested = req.CartItems
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin order transaction: %w", err)
	}
	defer tx.Rollback()

	if len(requested) == 0 {
		lines, err := database.ListCart(tx, user.ID)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			requested = append(requested, ItemRequest{ProductID: l.ProductID, Quantity: l.Quantity})
		}
	}
	if len(requested) == 0 {
		return nil, respond.BadRequest("Cart is empty")
	}
	items, err := mergeItems(requested)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		p, err := database.GetProduct(tx, it.ProductID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, respond.BadRequest(fmt.Sprintf("Product %d not found", it.ProductID))
			}
			return nil, err
		}
		if err := database.ReserveStockInTx(tx, p.ID, it.Quantity); err != nil {
			if errors.Is(err, model.ErrOutOfStock) {
				return nil, fmt.Errorf("%s: %w", p.Name, model.ErrOutOfStock)
			}
			return nil, err
		}
		o.Items = append(o.Items, mappers.MapProductToOrderItem(&p.Product, it.Quantity))
	}

	o.SubtotalCents = mappers.Subtotal(o.Items)
	o.ShippingFeeCents = rule.Fee(o.SubtotalCents)
	o.TotalCents = o.SubtotalCents + o.ShippingFeeCents

	if err := database.InsertOrderInTx(tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	o.Refunds = []model.Refund{}

	zap.L().Info("order created",
		zap.Int64("orderId", o.ID), zap.String("orderNo", o.OrderNo),
		zap.Int64("userId", user.ID), zap.Int64("totalCents", o.TotalCents))
	return o, nil
}

// visible hides other users' orders from non-admins.
func visible(o *model.Order, user *model.User) error {
	if o.UserID != user.ID && !user.IsAdmin() {
		return fmt.Errorf("order %d %w", o.ID, model.ErrNotFound)
	}
	return nil
}

// Get returns the order with items and refunds if user may see it.
func Get(db database.DBTX, user *model.User, id int64) (*model.Order, error) {
	o, err := database.GetOrderDetail(db, id)
	if err != nil {
		return nil, err
	}
	if err := visible(o, user); err != nil {
		return nil, err
	}
	return o, nil
}

// Confirm marks a shipped order as received.
func Confirm(db *sqlx.DB, user *model.User, id int64) (*model.Order, error) {
	o, err := database.GetOrder(db, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != user.ID {
		return nil, fmt.Errorf("order %d %w", id, model.ErrNotFound)
	}
	if o.Status != model.StatusShipped {
		return nil, respond.BadRequest("Order cannot be confirmed")
	}
	if err := database.TransitionOrder(db, id, model.StatusShipped, model.StatusCompleted); err != nil {
		return nil, err
	}
	zap.L().Info("order completed", zap.Int64("orderId", id))
	return database.GetOrderDetail(db, id)
}

// RequestRefund opens an after-sales request for a paid or shipped order and
// parks the order in refund_pending until an admin decides.
func RequestRefund(db *sqlx.DB, user *model.User, id int64, reason string) (*model.Refund, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, respond.BadRequest("Refund reason is required")
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin refund transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := database.GetOrder(tx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != user.ID {
		return nil, fmt.Errorf("order %d %w", id, model.ErrNotFound)
	}
	if o.Status != model.StatusPaid && o.Status != model.StatusShipped {
		return nil, respond.BadRequest("Order is not eligible for refund")
	}
	pending, err := database.HasPendingRefund(tx, id)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, respond.BadRequest("A refund request is already pending")
	}

	r := &model.Refund{OrderID: id, AmountCents: o.TotalCents, Reason: reason, PreviousStatus: o.Status}
	if err := database.InsertRefundInTx(tx, r); err != nil {
		return nil, err
	}
	if err := database.TransitionOrder(tx, id, o.Status, model.StatusRefundPending); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refund request: %w", err)
	}
	zap.L().Info("refund requested", zap.Int64("orderId", id), zap.Int64("refundId", r.ID))
	return r, nil
}

// IntentCanceler voids a gateway payment intent so it can no longer be
// captured.
type IntentCanceler interface {
	CancelIntent(ctx context.Context, intentID string) error
}

// Cancel cancels an unpaid order and puts its stock back. Owners may cancel
// their own orders; admins any. A live payment intent is voided first; if
// the customer already paid it the order is not cancelled and
// model.ErrPaymentCaptured is returned.
func Cancel(ctx context.Context, db *sqlx.DB, intents IntentCanceler, user *model.User, id int64, reason string) (*model.Order, error) {
	o, err := database.GetOrder(db, id)
	if err != nil {
		return nil, err
	}
	if err := visible(o, user); err != nil {
		return nil, err
	}
	if !model.Unpaid(o.Status) {
		return nil, respond.BadRequest("Only unpaid orders can be cancelled")
	}
	if o.PaymentIntentID != "" {
		if err := intents.CancelIntent(ctx, o.PaymentIntentID); err != nil {
			if errors.Is(err, model.ErrPaymentCaptured) {
				return nil, fmt.Errorf("order %d: %w", id, model.ErrPaymentCaptured)
			}
			return nil, fmt.Errorf("failed to void payment for order %d: %w", id, err)
		}
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin cancel transaction: %w", err)
	}
	defer tx.Rollback()

	// A payment may have been started while the intent was being voided.
	cur, err := database.GetOrder(tx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != o.Status || cur.PaymentIntentID != o.PaymentIntentID {
		return nil, fmt.Errorf("order %d changed while cancelling: %w", id, model.ErrConflict)
	}
	items, err := database.ListOrderItems(tx, id)
	if err != nil {
		return nil, err
	}
	if err := database.CancelOrder(tx, id, o.Status, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}
	if err := database.RestoreStockInTx(tx, items); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	zap.L().Info("order cancelled", zap.Int64("orderId", id), zap.Int64("by", user.ID))
	return database.GetOrderDetail(db, id)
}
