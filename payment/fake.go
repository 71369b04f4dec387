package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"petshop/model"
	"petshop/respond"
)

// FakeGateway is an in-memory gateway for development and tests. Webhook
// payloads are signed with a hex HMAC-SHA256 of the body.
type FakeGateway struct {
	mu            sync.Mutex
	seq           int
	intents       map[string]*Intent
	refunds       map[string]string
	webhookSecret string
	autoSucceed   bool
	// FailRefunds makes Refund return an error.
	FailRefunds bool
}

func NewFakeGateway(webhookSecret string, autoSucceed bool) *FakeGateway {
	return &FakeGateway{
		intents:       make(map[string]*Intent),
		refunds:       make(map[string]string),
		webhookSecret: webhookSecret,
		autoSucceed:   autoSucceed,
	}
}

func (g *FakeGateway) CreateIntent(_ context.Context, p IntentParams) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("pi_fake_%d", g.seq)
	status := IntentRequiresPaymentMethod
	if g.autoSucceed {
		status = IntentSucceeded
	}
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       status,
		Currency:     p.Currency,
		Amount:       p.Amount,
		Metadata: map[string]string{
			"orderId": strconv.FormatInt(p.OrderID, 10),
			"userId":  strconv.FormatInt(p.UserID, 10),
		},
	}
	g.intents[id] = in
	cp := *in
	return &cp, nil
}

func (g *FakeGateway) GetIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("payment intent %s %w", id, model.ErrNotFound)
	}
	cp := *in
	return &cp, nil
}

func (g *FakeGateway) CancelIntent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return fmt.Errorf("payment intent %s %w", id, model.ErrNotFound)
	}
	switch in.Status {
	case IntentSucceeded:
		return fmt.Errorf("payment intent %s: %w", id, model.ErrPaymentCaptured)
	case IntentProcessing:
		return fmt.Errorf("payment intent %s is processing: %w", id, model.ErrConflict)
	}
	in.Status = IntentCanceled
	return nil
}

// SetStatus simulates the customer finishing (or abandoning) a payment.
func (g *FakeGateway) SetStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[id]; ok {
		in.Status = status
	}
}

func (g *FakeGateway) Refund(_ context.Context, intentID string, amount int64, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailRefunds {
		return "", fmt.Errorf("fake: refund of %s declined", intentID)
	}
	if _, ok := g.intents[intentID]; !ok {
		return "", fmt.Errorf("payment intent %s %w", intentID, model.ErrNotFound)
	}
	if id, ok := g.refunds[idempotencyKey]; ok && idempotencyKey != "" {
		return id, nil
	}
	id := fmt.Sprintf("re_fake_%s_%d", intentID, amount)
	g.refunds[idempotencyKey] = id
	return id, nil
}

// Refunds returns how many distinct refunds were issued.
func (g *FakeGateway) Refunds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

type fakeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Status   string            `json:"status"`
			Currency string            `json:"currency"`
			Amount   int64             `json:"amount"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Sign computes the signature header value for payload.
func (g *FakeGateway) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// EventPayload builds a webhook body for the intent in the same shape the
// real gateway sends.
func (g *FakeGateway) EventPayload(eventID, eventType, intentID string) []byte {
	var ev fakeEvent
	ev.ID, ev.Type = eventID, eventType
	ev.Data.Object.ID = intentID
	if in, err := g.GetIntent(context.Background(), intentID); err == nil {
		ev.Data.Object.Status = in.Status
		ev.Data.Object.Currency = in.Currency
		ev.Data.Object.Amount = in.Amount
		ev.Data.Object.Metadata = in.Metadata
	}
	b, _ := json.Marshal(ev)
	return b
}

func (g *FakeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	want := g.Sign(payload)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return nil, ErrInvalidSignature
	}
	var ev fakeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, respond.BadRequest("Invalid webhook payload")
	}
	obj := ev.Data.Object
	return &Event{
		ID:   ev.ID,
		Type: ev.Type,
		Intent: Intent{
			ID: obj.ID, Status: obj.Status, Currency: obj.Currency, Amount: obj.Amount, Metadata: obj.Metadata,
		},
	}, nil
}

func (g *FakeGateway) SignatureHeader() string {
	return "Fake-Signature"
}
