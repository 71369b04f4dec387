package main

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"petshop/address"
	"petshop/admin"
	"petshop/analytics"
	"petshop/auth"
	"petshop/cart"
	"petshop/loader"
	"petshop/order"
	"petshop/payment"
	"petshop/product"
	"petshop/render"
	"petshop/respond"
)

func SetupRoutes(mux *http.ServeMux, db *sqlx.DB, pay *payment.Service, pages *render.Pages) {
	user := func(h http.HandlerFunc) http.HandlerFunc { return auth.RequireUser(db, h) }
	staff := func(h http.HandlerFunc) http.HandlerFunc { return auth.RequireAdmin(db, h) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			respond.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/static/", render.StaticHandler())

	mux.HandleFunc("POST /api/auth/login", auth.LoginHandler(db))
	mux.HandleFunc("POST /api/auth/register", auth.RegisterHandler(db))
	mux.HandleFunc("POST /api/auth/logout", auth.LogoutHandler())
	mux.HandleFunc("GET /api/auth/me", user(auth.MeHandler()))

	mux.HandleFunc("GET /api/products", product.ListProductsHandler(db))
	mux.HandleFunc("GET /api/products/{id}", product.GetProductHandler(db))
	mux.HandleFunc("POST /api/products", staff(product.CreateProductHandler(db)))
	mux.HandleFunc("PUT /api/products/{id}", staff(product.UpdateProductHandler(db)))
	mux.HandleFunc("DELETE /api/products/{id}", staff(product.DeleteProductHandler(db)))
	mux.HandleFunc("GET /api/categories", product.ListCategoriesHandler(db))
	mux.HandleFunc("GET /api/categories/{slug}", product.GetCategoryHandler(db))

	mux.HandleFunc("GET /api/cart", user(cart.GetCartHandler(db)))
	mux.HandleFunc("POST /api/cart", user(cart.AddToCartHandler(db)))
	mux.HandleFunc("PUT /api/cart/{id}", user(cart.UpdateCartItemHandler(db)))
	mux.HandleFunc("DELETE /api/cart", user(cart.DeleteCartItemHandler(db)))
	mux.HandleFunc("DELETE /api/cart/{id}", user(cart.DeleteCartItemHandler(db)))
	mux.HandleFunc("DELETE /api/cart/all", user(cart.ClearCartHandler(db)))

	mux.HandleFunc("GET /api/addresses", user(address.ListAddressesHandler(db)))
	mux.HandleFunc("POST /api/addresses", user(address.CreateAddressHandler(db)))
	mux.HandleFunc("DELETE /api/addresses/{id}", user(address.DeleteAddressHandler(db)))
	mux.HandleFunc("PUT /api/addresses/{id}/default", user(address.SetDefaultAddressHandler(db)))

	mux.HandleFunc("POST /api/orders", user(order.CreateOrderHandler(db)))
	mux.HandleFunc("GET /api/orders", user(order.ListOrdersHandler(db)))
	mux.HandleFunc("GET /api/orders/{id}", user(order.GetOrderHandler(db)))
	mux.HandleFunc("POST /api/orders/{id}/confirm", user(order.ConfirmOrderHandler(db)))
	mux.HandleFunc("POST /api/orders/{id}/refund", user(order.RequestRefundHandler(db)))
	mux.HandleFunc("POST /api/orders/{id}/cancel", user(order.CancelOrderHandler(db, pay)))

	mux.HandleFunc("POST /api/payments", user(payment.CreatePaymentHandler(pay)))
	mux.HandleFunc("PUT /api/payments", user(payment.SyncPaymentHandler(pay)))
	mux.HandleFunc("POST /api/payments/webhook", payment.WebhookHandler(pay))

	mux.HandleFunc("POST /api/admin", staff(admin.ShipOrderHandler(db)))
	mux.HandleFunc("PUT /api/admin", staff(admin.AfterSaleHandler(db, pay)))
	mux.HandleFunc("GET /api/admin/orders", staff(admin.ListOrdersHandler(db)))
	mux.HandleFunc("GET /api/admin/refunds", staff(admin.ListRefundsHandler(db)))
	mux.HandleFunc("PUT /api/admin/refunds/{id}", staff(admin.DecideRefundHandler(db, pay)))
	mux.HandleFunc("GET /api/admin/dashboard", staff(analytics.DashboardHandler(db)))
	mux.HandleFunc("GET /api/admin/config", staff(GetConfigHandler()))
	mux.HandleFunc("POST /api/admin/config", staff(SaveConfigHandler()))
	mux.HandleFunc("POST /api/admin/products/import", staff(loader.ImportProductsHandler(db)))
	mux.HandleFunc("POST /api/admin/seed", staff(loader.SeedHandler(db)))

	mux.HandleFunc("GET /api/users", staff(admin.ListUsersHandler(db)))
	mux.HandleFunc("PUT /api/users/{id}", staff(admin.UpdateUserRoleHandler(db)))
	mux.HandleFunc("DELETE /api/users/{id}", staff(admin.DeleteUserHandler(db)))

	mux.HandleFunc("GET /api/analytics", staff(analytics.SalesHandler(db)))
	mux.HandleFunc("GET /api/analytics/export", staff(analytics.ExportSalesCSVHandler(db)))

	mux.Handle("/", pages.Handler())
}
