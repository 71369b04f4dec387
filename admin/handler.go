package admin

import (
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"
	"petshop/auth"
	"petshop/database"
	"petshop/mappers"
	"petshop/model"
	"petshop/order"
	"petshop/payment"
	"petshop/respond"
)

// ShipOrderHandler handles POST /api/admin.
func ShipOrderHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderID        int64  `json:"orderId"`
			TrackingNumber string `json:"trackingNumber"`
		}
		if err := respond.Decode(r, &req); err != nil || req.OrderID <= 0 {
			respond.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		o, err := Ship(db, req.OrderID, req.TrackingNumber)
		if err != nil {
			respond.Err(w, err, "Failed to process shipment")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToOrderView(*o))
	}
}

// AfterSaleHandler handles PUT /api/admin. Cancelling an unpaid order is the
// only after-sales action; refunds go through the refund queue.
func AfterSaleHandler(db *sqlx.DB, intents order.IntentCanceler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderID int64  `json:"orderId"`
			Status  string `json:"status"`
			Reason  string `json:"reason"`
		}
		if err := respond.Decode(r, &req); err != nil || req.OrderID <= 0 {
			respond.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Status != model.StatusCancelled {
			respond.Error(w, http.StatusBadRequest, "Unsupported status")
			return
		}
		o, err := order.Cancel(r.Context(), db, intents, auth.UserFrom(r.Context()), req.OrderID, req.Reason)
		if err != nil {
			respond.Err(w, err, "Failed to process after-sales request")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToOrderView(*o))
	}
}

func ListOrdersHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		if status != "" && !model.ValidStatus(status) {
			respond.Error(w, http.StatusBadRequest, "Invalid status")
			return
		}
		orders, err := database.ListOrders(db, status)
		if err != nil {
			respond.Err(w, err, "Failed to fetch orders")
			return
		}
		respond.JSON(w, http.StatusOK, orders)
	}
}

func ListRefundsHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refunds, err := database.ListRefunds(db)
		if err != nil {
			respond.Err(w, err, "Failed to fetch refunds")
			return
		}
		respond.JSON(w, http.StatusOK, refunds)
	}
}

// DecideRefundHandler handles PUT /api/admin/refunds/{id}.
func DecideRefundHandler(db *sqlx.DB, pay *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid refund ID")
			return
		}
		var req struct {
			Status   string `json:"status"`
			Response string `json:"response"`
		}
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		refund, err := DecideRefund(r.Context(), db, pay, id, req.Status, req.Response)
		if err != nil {
			if errors.Is(err, ErrGatewayRefund) {
				respond.Error(w, http.StatusBadGateway, "Payment gateway refund failed")
				return
			}
			respond.Err(w, err, "Failed to process refund")
			return
		}
		respond.JSON(w, http.StatusOK, refund)
	}
}
