// Package admin is the back office: fulfilment, after-sales and refund
// decisions, and user management.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/database"
	"petshop/model"
	"petshop/payment"
	"petshop/respond"
)

// ErrGatewayRefund marks a refund the payment gateway would not make. The
// request stays pending so it can be approved again.
var ErrGatewayRefund = errors.New("payment gateway refund failed")

// Ship records the tracking number on a paid order and marks it shipped.
func Ship(db *sqlx.DB, id int64, trackingNumber string) (*model.Order, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, respond.BadRequest("Tracking number is required")
	}
	o, err := database.GetOrder(db, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("Order %w", model.ErrNotFound)
		}
		return nil, err
	}
	if o.Status != model.StatusPaid {
		return nil, respond.BadRequest("Order not ready for shipping")
	}
	if err := database.ShipOrder(db, id, trackingNumber); err != nil {
		return nil, err
	}
	zap.L().Info("order shipped", zap.Int64("orderId", id), zap.String("tracking", trackingNumber))
	return database.GetOrderDetail(db, id)
}

// DecideRefund approves or rejects a pending refund request.
//
// Approval asks the gateway to return the money first; only when that
// succeeds are the refund, the order and the stock updated together.
// Rejection returns the order to the status it had when the request was
// opened.
func DecideRefund(ctx context.Context, db *sqlx.DB, pay *payment.Service, id int64, status, response string) (*model.Refund, error) {
	if status != model.RefundApproved && status != model.RefundRejected {
		return nil, respond.BadRequest("Invalid status")
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, respond.BadRequest("Response is required")
	}

	refund, err := database.GetRefund(db, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("Refund %w", model.ErrNotFound)
		}
		return nil, err
	}
	if refund.Status != model.RefundPending {
		return nil, respond.BadRequest("Refund has already been processed")
	}
	o, err := database.GetOrder(db, refund.OrderID)
	if err != nil {
		return nil, err
	}

	var gatewayID string
	if status == model.RefundApproved {
		gatewayID, err = pay.RefundOrder(ctx, o, refund.ID)
		if err != nil {
			zap.L().Error("gateway refund failed", zap.Int64("refundId", id), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrGatewayRefund, err)
		}
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin refund decision: %w", err)
	}
	defer tx.Rollback()

	if err := database.DecideRefundInTx(tx, id, status, response, gatewayID); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, respond.BadRequest("Refund has already been processed")
		}
		return nil, err
	}
	if status == model.RefundApproved {
		if err := database.TransitionOrder(tx, o.ID, model.StatusRefundPending, model.StatusRefunded); err != nil {
			return nil, err
		}
		items, err := database.ListOrderItems(tx, o.ID)
		if err != nil {
			return nil, err
		}
		if err := database.RestoreStockInTx(tx, items); err != nil {
			return nil, err
		}
	} else {
		back := refund.PreviousStatus
		if back == "" {
			back = model.StatusPaid
		}
		if err := database.TransitionOrder(tx, o.ID, model.StatusRefundPending, back); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refund decision: %w", err)
	}

	zap.L().Info("refund decided", zap.Int64("refundId", id), zap.Int64("orderId", o.ID), zap.String("status", status))
	return database.GetRefund(db, id)
}
