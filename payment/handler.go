package payment

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
	"petshop/auth"
	"petshop/mappers"
	"petshop/respond"
)

const maxWebhookBytes = 64 << 10

func CreatePaymentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderID       int64  `json:"orderId"`
			PaymentMethod string `json:"paymentMethod"`
		}
		if err := respond.Decode(r, &req); err != nil || req.OrderID <= 0 || req.PaymentMethod == "" {
			respond.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		res, err := svc.CreatePayment(r.Context(), auth.UserFrom(r.Context()), req.OrderID, req.PaymentMethod)
		if err != nil {
			respond.Err(w, err, "Failed to process payment")
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

func SyncPaymentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PaymentIntentID string `json:"paymentIntentId"`
		}
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		o, err := svc.SyncPayment(r.Context(), auth.UserFrom(r.Context()), req.PaymentIntentID)
		if err != nil {
			respond.Err(w, err, "Failed to confirm payment")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToOrderView(*o))
	}
}

// WebhookHandler is unauthenticated; the signature is the credential.
func WebhookHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Failed to read body")
			return
		}
		sig := r.Header.Get(svc.Gateway().SignatureHeader())
		if err := svc.HandleWebhook(r.Context(), payload, sig); err != nil {
			if errors.Is(err, ErrInvalidSignature) {
				zap.L().Warn("rejected payment webhook", zap.Error(err))
				respond.Error(w, http.StatusBadRequest, "Invalid signature")
				return
			}
			respond.Err(w, err, "Failed to handle webhook")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
