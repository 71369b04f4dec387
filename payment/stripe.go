package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"petshop/model"
)

// StripeGateway is the production gateway.
type StripeGateway struct {
	sc            *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{sc: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Currency:     string(pi.Currency),
		Amount:       pi.Amount,
		Metadata:     pi.Metadata,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(p.Amount),
		Currency:           stripe.String(p.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{p.Method}),
	}
	if p.Method == model.PaymentWechat {
		params.PaymentMethodOptions = &stripe.PaymentIntentPaymentMethodOptionsParams{
			WeChatPay: &stripe.PaymentIntentPaymentMethodOptionsWeChatPayParams{Client: stripe.String("web")},
		}
	}
	params.Context = ctx
	params.AddMetadata("orderId", strconv.FormatInt(p.OrderID, 10))
	params.AddMetadata("userId", strconv.FormatInt(p.UserID, 10))
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.sc.PaymentIntents.Get(id, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
			return nil, fmt.Errorf("payment intent %s %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("stripe: get payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := g.sc.PaymentIntents.Cancel(id, params)
	if err == nil {
		return nil
	}
	// Stripe refuses to cancel intents that already finished; look at where
	// this one ended up.
	in, gerr := g.GetIntent(ctx, id)
	if gerr != nil {
		return fmt.Errorf("stripe: cancel payment intent: %w", err)
	}
	switch in.Status {
	case IntentCanceled:
		return nil
	case IntentSucceeded:
		return fmt.Errorf("payment intent %s: %w", id, model.ErrPaymentCaptured)
	case IntentProcessing:
		return fmt.Errorf("payment intent %s is processing: %w", id, model.ErrConflict)
	}
	return fmt.Errorf("stripe: cancel payment intent: %w", err)
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amount int64, idempotencyKey string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	r, err := g.sc.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: refund %s: %w", intentID, err)
	}
	return r.ID, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil && len(ev.Data.Raw) > 0 {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err == nil {
			out.Intent = *fromStripe(&pi)
		}
	}
	return out, nil
}

func (g *StripeGateway) SignatureHeader() string {
	return "Stripe-Signature"
}
