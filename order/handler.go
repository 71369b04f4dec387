package order

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"petshop/auth"
	"petshop/config"
	"petshop/database"
	"petshop/mappers"
	"petshop/respond"
)

func CreateOrderHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		o, err := Create(db, auth.UserFrom(r.Context()), req, config.GetConfig().Shop.ShippingRule())
		if err != nil {
			respond.Err(w, err, "Failed to create order")
			return
		}
		respond.JSON(w, http.StatusCreated, mappers.ToOrderView(*o))
	}
}

func ListOrdersHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := database.ListOrdersByUser(db, auth.UserFrom(r.Context()).ID)
		if err != nil {
			respond.Err(w, err, "Failed to fetch orders")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToOrderViews(orders))
	}
}

func GetOrderHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid order id")
			return
		}
		o, err := Get(db, auth.UserFrom(r.Context()), id)
		if err != nil {
			respond.Err(w, err, "Failed to fetch order")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToOrderView(*o))
	}
}

func ConfirmOrderHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid order id")
			return
		}
		o, err := Confirm(db, auth.UserFrom(r.Context()), id)
		if err != nil {
			respond.Err(w, err, "Failed to confirm order")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToOrderView(*o))
	}
}

func RequestRefundHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid order id")
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "Refund reason is required")
			return
		}
		refund, err := RequestRefund(db, auth.UserFrom(r.Context()), id, req.Reason)
		if err != nil {
			respond.Err(w, err, "Failed to request refund")
			return
		}
		respond.JSON(w, http.StatusCreated, refund)
	}
}

func CancelOrderHandler(db *sqlx.DB, intents IntentCanceler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid order id")
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		if r.ContentLength != 0 {
			if err := respond.Decode(r, &req); err != nil {
				respond.Error(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		o, err := Cancel(r.Context(), db, intents, auth.UserFrom(r.Context()), id, req.Reason)
		if err != nil {
			respond.Err(w, err, "Failed to cancel order")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToOrderView(*o))
	}
}
