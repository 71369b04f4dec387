package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrOutOfStock        = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrPaymentCaptured means the gateway already took the money, so the
	// payment can no longer be voided.
	ErrPaymentCaptured = errors.New("payment already captured")
)
