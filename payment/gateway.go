// Package payment talks to the payment gateway and applies its verdicts to
// orders.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"petshop/config"
	"petshop/model"
)

// Gateway intent statuses.
const (
	IntentSucceeded             = "succeeded"
	IntentProcessing            = "processing"
	IntentRequiresAction        = "requires_action"
	IntentRequiresConfirmation  = "requires_confirmation"
	IntentRequiresPaymentMethod = "requires_payment_method"
	IntentCanceled              = "canceled"
)

// Webhook event types that move orders.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

// ErrInvalidSignature is returned for webhook payloads that fail
// verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Intent is the gateway's view of one payment attempt.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Currency     string
	Amount       int64
	Metadata     map[string]string
}

// OrderID reads the order id the intent was created for.
func (i *Intent) OrderID() int64 {
	id, _ := strconv.ParseInt(i.Metadata["orderId"], 10, 64)
	return id
}

type IntentParams struct {
	OrderID        int64
	UserID         int64
	Amount         int64
	Currency       string
	Method         string
	IdempotencyKey string
}

// Event is a verified webhook notification.
type Event struct {
	ID     string
	Type   string
	Intent Intent
}

type Gateway interface {
	CreateIntent(ctx context.Context, p IntentParams) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	// CancelIntent voids an uncaptured intent. Cancelling a canceled intent
	// is a no-op; a succeeded one returns model.ErrPaymentCaptured.
	CancelIntent(ctx context.Context, id string) error
	// Refund returns the gateway's refund id.
	Refund(ctx context.Context, intentID string, amount int64, idempotencyKey string) (string, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
	// SignatureHeader names the HTTP header carrying the webhook signature.
	SignatureHeader() string
}

// NewGateway builds the gateway selected by payment.provider.
func NewGateway(cfg config.PaymentConfig) (Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		if cfg.SecretKey == "" {
			return nil, errors.New("payment.secret_key is required for the stripe provider")
		}
		return NewStripeGateway(cfg.SecretKey, cfg.WebhookSecret), nil
	case "fake", "":
		return NewFakeGateway(cfg.WebhookSecret, cfg.AutoSucceed), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// Currency picks the charge currency for a payment method: cards are charged
// in USD, the Chinese wallets in CNY.
func Currency(method string) string {
	if method == model.PaymentCard {
		return "usd"
	}
	return "cny"
}

// MinimumAmount is the smallest charge the gateway accepts per currency, in
// minor units.
func MinimumAmount(currency string) int64 {
	switch currency {
	case "usd":
		return 50
	case "cny":
		return 14
	}
	return 1
}

// statusForIntent maps a gateway intent status to the order status it
// implies. ok is false for statuses that leave the order where it is.
func statusForIntent(intentStatus string) (status string, ok bool) {
	switch intentStatus {
	case IntentSucceeded:
		return model.StatusPaid, true
	case IntentRequiresPaymentMethod, IntentCanceled:
		return model.StatusPaymentFailed, true
	}
	return "", false
}

// intentStatusForEvent maps webhook event types onto intent statuses.
func intentStatusForEvent(eventType string) (string, bool) {
	switch eventType {
	case EventIntentSucceeded:
		return IntentSucceeded, true
	case EventIntentFailed:
		return IntentRequiresPaymentMethod, true
	case EventIntentCanceled:
		return IntentCanceled, true
	}
	return "", false
}
