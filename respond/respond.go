// Package respond holds the JSON helpers shared by the API handlers.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"petshop/model"
)

const maxBodyBytes = 1 << 20

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// BadRequestError carries a message that is safe to show to the client.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return e.Msg }

// BadRequest returns an error that Err reports as a 400 with msg.
func BadRequest(msg string) error {
	return &BadRequestError{Msg: msg}
}

// Status maps model sentinel errors to a status code and a message that is
// safe to show. Anything unrecognised is a 500 with the fallback message.
func Status(err error, fallback string) (int, string) {
	var bad *BadRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.Msg
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, messageOr(err, "Not found")
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, model.ErrOutOfStock), errors.Is(err, model.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, model.ErrPaymentCaptured):
		return http.StatusConflict, "Payment has already been completed"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, fallback
	}
}

// Err writes the error response for err. Unrecognised errors are logged.
func Err(w http.ResponseWriter, err error, fallback string) {
	status, msg := Status(err, fallback)
	if status == http.StatusInternalServerError {
		zap.L().Error(fallback, zap.Error(err))
	}
	Error(w, status, msg)
}

func messageOr(err error, def string) string {
	if errors.Is(err, model.ErrNotFound) && err.Error() != model.ErrNotFound.Error() {
		return err.Error()
	}
	return def
}

// Decode reads a JSON body into v. Unknown fields are allowed.
func Decode(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// PathID parses a numeric path value such as {id}.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return id, nil
}
