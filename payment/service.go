package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/database"
	"petshop/model"
	"petshop/money"
	"petshop/respond"
)

// Service applies gateway results to orders.
type Service struct {
	db *sqlx.DB
	gw Gateway
}

func NewService(db *sqlx.DB, gw Gateway) *Service {
	return &Service{db: db, gw: gw}
}

func (s *Service) Gateway() Gateway { return s.gw }

// CreateResult is what the browser needs to confirm the payment with the
// gateway's client library.
type CreateResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Currency        string `json:"currency"`
	Amount          int64  `json:"amount"`
}

func payable(status string) bool {
	return status == model.StatusPending || status == model.StatusPaymentFailed || status == model.StatusPaymentPending
}

// CreatePayment opens a payment intent for the order total and moves the
// order to payment_pending. A payment_pending order gets a fresh intent.
func (s *Service) CreatePayment(ctx context.Context, user *model.User, orderID int64, method string) (*CreateResult, error) {
	if !model.ValidPaymentMethod(method) {
		return nil, respond.BadRequest("Invalid payment method")
	}
	o, err := database.GetOrder(s.db, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != user.ID {
		return nil, fmt.Errorf("order %d %w", orderID, model.ErrNotFound)
	}
	if !payable(o.Status) {
		return nil, respond.BadRequest("Order cannot be paid in current status")
	}

	currency := Currency(method)
	if minAmount := MinimumAmount(currency); o.TotalCents < minAmount {
		return nil, respond.BadRequest(fmt.Sprintf("Minimum amount for %s payment is %s",
			strings.ToUpper(currency), money.Format(minAmount)))
	}

	if o.PaymentIntentID != "" {
		if err := s.supersede(ctx, o); err != nil {
			return nil, err
		}
	}

	intent, err := s.gw.CreateIntent(ctx, IntentParams{
		OrderID:        o.ID,
		UserID:         user.ID,
		Amount:         o.TotalCents,
		Currency:       currency,
		Method:         method,
		IdempotencyKey: fmt.Sprintf("order-%d-%s", o.ID, uuid.NewString()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent for order %d: %w", o.ID, err)
	}
	if err := database.SetPaymentIntent(s.db, o.ID, o.Status, intent.ID, method, currency); err != nil {
		return nil, err
	}

	zap.L().Info("payment intent created",
		zap.Int64("orderId", o.ID), zap.String("intentId", intent.ID),
		zap.String("method", method), zap.Int64("amount", o.TotalCents))
	return &CreateResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Currency:        currency,
		Amount:          o.TotalCents,
	}, nil
}

// SyncPayment re-reads an intent from the gateway after the browser returns
// from checkout and applies its status to the order.
func (s *Service) SyncPayment(ctx context.Context, user *model.User, intentID string) (*model.Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, respond.BadRequest("paymentIntentId is required")
	}
	intent, err := s.gw.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	orderID := intent.OrderID()

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin payment transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := database.GetOrder(tx, orderID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("order for intent %s %w", intentID, model.ErrNotFound)
		}
		return nil, err
	}
	if o.UserID != user.ID {
		return nil, fmt.Errorf("order %d %w", orderID, model.ErrNotFound)
	}
	if o.PaymentIntentID != intent.ID {
		return nil, respond.BadRequest("Payment does not belong to the current order payment")
	}
	if err := applyIntent(tx, o, intent.Status); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment status: %w", err)
	}
	return database.GetOrderDetail(s.db, o.ID)
}

// supersede voids the order's current intent before a new one replaces it,
// so the customer cannot pay twice. When that intent was paid after all the
// order is marked paid and ErrPaymentCaptured is returned.
func (s *Service) supersede(ctx context.Context, o *model.Order) error {
	err := s.CancelIntent(ctx, o.PaymentIntentID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrPaymentCaptured):
		if err := s.applyCaptured(o.ID, o.PaymentIntentID); err != nil {
			return err
		}
		return fmt.Errorf("order %d: %w", o.ID, model.ErrPaymentCaptured)
	case errors.Is(err, model.ErrConflict):
		return fmt.Errorf("payment for order %d is still processing: %w", o.ID, model.ErrConflict)
	}
	return fmt.Errorf("failed to cancel payment intent %s: %w", o.PaymentIntentID, err)
}

func (s *Service) applyCaptured(orderID int64, intentID string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin payment transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := database.GetOrder(tx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentIntentID != intentID {
		return nil
	}
	if err := applyIntent(tx, o, IntentSucceeded); err != nil {
		return err
	}
	return tx.Commit()
}

// CancelIntent voids an intent so it can no longer be captured. Intents the
// gateway does not know count as void.
func (s *Service) CancelIntent(ctx context.Context, intentID string) error {
	err := s.gw.CancelIntent(ctx, intentID)
	if errors.Is(err, model.ErrNotFound) {
		zap.L().Warn("cancelling unknown payment intent", zap.String("intentId", intentID))
		return nil
	}
	return err
}

// orderForIntent finds the order an event is about: by the stored intent id,
// or by the order id in the intent metadata for intents that were replaced.
func orderForIntent(dbtx database.DBTX, in *Intent) (*model.Order, error) {
	o, err := database.GetOrderByPaymentIntent(dbtx, in.ID)
	if errors.Is(err, model.ErrNotFound) && in.OrderID() > 0 {
		return database.GetOrder(dbtx, in.OrderID())
	}
	return o, err
}

// HandleWebhook verifies and applies a gateway notification. Replayed events
// and events for unknown intents are acknowledged without effect.
//
// A capture the order cannot accept (the order was cancelled, or it was
// already paid through another intent) is refunded before the event is
// recorded; if the refund fails nothing is committed and the gateway
// redelivers the event.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gw.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("eventId", ev.ID), zap.String("type", ev.Type), zap.String("intentId", ev.Intent.ID))

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin webhook transaction: %w", err)
	}
	defer tx.Rollback()

	fresh, err := database.RecordPaymentEvent(tx, ev.ID, ev.Type, ev.Intent.ID)
	if err != nil {
		return err
	}
	if !fresh {
		log.Info("duplicate payment event ignored")
		return tx.Commit()
	}
	intentStatus, ok := intentStatusForEvent(ev.Type)
	if !ok || ev.Intent.ID == "" {
		return tx.Commit()
	}

	o, err := orderForIntent(tx, &ev.Intent)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			log.Warn("payment event for unknown intent")
			return tx.Commit()
		}
		return err
	}

	captured := intentStatus == IntentSucceeded
	current := o.PaymentIntentID == ev.Intent.ID
	var replaced string
	switch {
	case current && !(captured && o.Status == model.StatusCancelled):
		if err := applyIntent(tx, o, intentStatus); err != nil {
			return err
		}
	case !captured:
		log.Info("payment event for a replaced intent ignored", zap.Int64("orderId", o.ID))
	case !current && payable(o.Status):
		// The customer paid an attempt that a retry replaced; keep that
		// payment and void the newer intent.
		replaced = o.PaymentIntentID
		if err := database.ReplacePaymentIntent(tx, o.ID, o.Status, ev.Intent.ID); err != nil {
			return err
		}
		o.PaymentIntentID = ev.Intent.ID
		if err := applyIntent(tx, o, intentStatus); err != nil {
			return err
		}
	default:
		if err := s.refundCapture(ctx, o, &ev.Intent); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit webhook: %w", err)
	}
	log.Info("payment event applied", zap.Int64("orderId", o.ID), zap.String("orderStatus", o.Status))

	if replaced != "" {
		if err := s.CancelIntent(ctx, replaced); err != nil {
			log.Warn("failed to cancel replaced payment intent", zap.String("replaced", replaced), zap.Error(err))
		}
	}
	return nil
}

// refundCapture returns money captured on an intent the order no longer
// accepts.
func (s *Service) refundCapture(ctx context.Context, o *model.Order, in *Intent) error {
	amount := in.Amount
	if amount <= 0 {
		amount = o.TotalCents
	}
	id, err := s.gw.Refund(ctx, in.ID, amount, "capture-"+in.ID)
	if err != nil {
		return fmt.Errorf("failed to refund capture %s on order %d: %w", in.ID, o.ID, err)
	}
	zap.L().Warn("refunded capture the order cannot accept",
		zap.Int64("orderId", o.ID), zap.String("orderStatus", o.Status),
		zap.String("intentId", in.ID), zap.String("refundId", id), zap.Int64("amount", amount))
	return nil
}

// applyIntent moves the order to the status implied by the intent. Paid
// orders clear the buyer's cart in the same transaction. Statuses that
// imply no change, or a move the order can no longer make, are ignored.
func applyIntent(tx *sqlx.Tx, o *model.Order, intentStatus string) error {
	target, ok := statusForIntent(intentStatus)
	if !ok || target == o.Status {
		return nil
	}
	if !model.CanTransition(o.Status, target) {
		zap.L().Warn("payment status ignored",
			zap.Int64("orderId", o.ID), zap.String("orderStatus", o.Status), zap.String("intentStatus", intentStatus))
		return nil
	}
	if err := database.TransitionOrder(tx, o.ID, o.Status, target); err != nil {
		return err
	}
	if target == model.StatusPaid {
		if _, err := database.ClearCart(tx, o.UserID); err != nil {
			return err
		}
	}
	zap.L().Info("order payment status changed",
		zap.Int64("orderId", o.ID), zap.String("from", o.Status), zap.String("to", target))
	o.Status = target
	return nil
}

// RefundOrder gives the captured amount back through the gateway. Orders
// without an intent have nothing to refund and return an empty id.
func (s *Service) RefundOrder(ctx context.Context, o *model.Order, refundID int64) (string, error) {
	if o.PaymentIntentID == "" {
		return "", nil
	}
	id, err := s.gw.Refund(ctx, o.PaymentIntentID, o.TotalCents, fmt.Sprintf("refund-%d", refundID))
	if err != nil {
		return "", err
	}
	zap.L().Info("gateway refund issued", zap.Int64("orderId", o.ID), zap.String("refundId", id))
	return id, nil
}
