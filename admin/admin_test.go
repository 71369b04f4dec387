package admin_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"petshop/admin"
	"petshop/auth"
	"petshop/database"
	"petshop/model"
	"petshop/money"
	"petshop/order"
	"petshop/payment"
	"petshop/testutil"
)

type env struct {
	db    *sqlx.DB
	gw    *payment.FakeGateway
	pay   *payment.Service
	buyer *model.User
	admin *model.User
	prod  *model.Product
}

func newEnv(t *testing.T) env {
	db := testutil.NewDB(t)
	gw := payment.NewFakeGateway("whsec_test", false)
	cat := testutil.CreateCategory(t, db, "cat-care")
	return env{
		db:    db,
		gw:    gw,
		pay:   payment.NewService(db, gw),
		buyer: testutil.CreateUser(t, db, model.RoleUser),
		admin: testutil.CreateUser(t, db, model.RoleAdmin),
		prod:  testutil.CreateProduct(t, db, cat.ID, 15900, 10),
	}
}

// paidOrder places an order for two units and pays it through the fake
// gateway.
func (e env) paidOrder(t *testing.T) *model.Order {
	t.Helper()
	ctx := context.Background()
	o, err := order.Create(e.db, e.buyer, order.CreateRequest{
		Address: "Beijing", Phone: "137",
		Items: []order.ItemRequest{{ProductID: e.prod.ID, Quantity: 2}},
	}, money.ShippingRule{FreeThresholdCents: 10000, FeeCents: 1000})
	require.NoError(t, err)
	res, err := e.pay.CreatePayment(ctx, e.buyer, o.ID, model.PaymentCard)
	require.NoError(t, err)
	e.gw.SetStatus(res.PaymentIntentID, payment.IntentSucceeded)
	paid, err := e.pay.SyncPayment(ctx, e.buyer, res.PaymentIntentID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPaid, paid.Status)
	return paid
}

func (e env) stock(t *testing.T) int {
	t.Helper()
	p, err := database.GetProduct(e.db, e.prod.ID)
	require.NoError(t, err)
	return p.Stock
}

func TestShip(t *testing.T) {
	e := newEnv(t)
	o := e.paidOrder(t)

	_, err := admin.Ship(e.db, o.ID, " ")
	assert.EqualError(t, err, "Tracking number is required")

	shipped, err := admin.Ship(e.db, o.ID, "SF123")
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, shipped.Status)
	assert.Equal(t, "SF123", shipped.TrackingNumber)

	_, err = admin.Ship(e.db, o.ID, "SF124")
	assert.EqualError(t, err, "Order not ready for shipping")

	_, err = admin.Ship(e.db, 424242, "SF1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApproveRefund(t *testing.T) {
	e := newEnv(t)
	o := e.paidOrder(t)
	require.Equal(t, 8, e.stock(t))

	r, err := order.RequestRefund(e.db, e.buyer, o.ID, "arrived broken")
	require.NoError(t, err)

	_, err = admin.DecideRefund(context.Background(), e.db, e.pay, r.ID, "maybe", "ok")
	assert.EqualError(t, err, "Invalid status")
	_, err = admin.DecideRefund(context.Background(), e.db, e.pay, r.ID, model.RefundApproved, "")
	assert.EqualError(t, err, "Response is required")

	got, err := admin.DecideRefund(context.Background(), e.db, e.pay, r.ID, model.RefundApproved, "sorry")
	require.NoError(t, err)
	assert.Equal(t, model.RefundApproved, got.Status)
	assert.NotEmpty(t, got.GatewayRefund)
	assert.Equal(t, 1, e.gw.Refunds())

	stored, err := database.GetOrder(e.db, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, stored.Status)
	assert.Equal(t, 10, e.stock(t))

	_, err = admin.DecideRefund(context.Background(), e.db, e.pay, r.ID, model.RefundRejected, "again")
	assert.EqualError(t, err, "Refund has already been processed")
}

func TestRejectRefundRestoresStatus(t *testing.T) {
	e := newEnv(t)
	o := e.paidOrder(t)
	_, err := admin.Ship(e.db, o.ID, "YT9")
	require.NoError(t, err)

	r, err := order.RequestRefund(e.db, e.buyer, o.ID, "changed my mind")
	require.NoError(t, err)
	got, err := admin.DecideRefund(context.Background(), e.db, e.pay, r.ID, model.RefundRejected, "already shipped")
	require.NoError(t, err)
	assert.Equal(t, model.RefundRejected, got.Status)

	stored, err := database.GetOrder(e.db, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, stored.Status)
	assert.Equal(t, 8, e.stock(t))
	assert.Equal(t, 0, e.gw.Refunds())
}

func TestGatewayFailureKeepsRefundPending(t *testing.T) {
	e := newEnv(t)
	o := e.paidOrder(t)
	r, err := order.RequestRefund(e.db, e.buyer, o.ID, "late")
	require.NoError(t, err)

	e.gw.FailRefunds = true
	_, err = admin.DecideRefund(context.Background(), e.db, e.pay, r.ID, model.RefundApproved, "ok")
	assert.ErrorIs(t, err, admin.ErrGatewayRefund)

	stored, err := database.GetRefund(e.db, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RefundPending, stored.Status)

	e.gw.FailRefunds = false
	_, err = admin.DecideRefund(context.Background(), e.db, e.pay, r.ID, model.RefundApproved, "ok")
	require.NoError(t, err)
}

func TestAdminHandlers(t *testing.T) {
	e := newEnv(t)
	o := e.paidOrder(t)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin", auth.RequireAdmin(e.db, admin.ShipOrderHandler(e.db)))
	mux.HandleFunc("PUT /api/admin", auth.RequireAdmin(e.db, admin.AfterSaleHandler(e.db, e.pay)))
	mux.HandleFunc("GET /api/admin/orders", auth.RequireAdmin(e.db, admin.ListOrdersHandler(e.db)))
	mux.HandleFunc("GET /api/admin/refunds", auth.RequireAdmin(e.db, admin.ListRefundsHandler(e.db)))
	mux.HandleFunc("PUT /api/admin/refunds/{id}", auth.RequireAdmin(e.db, admin.DecideRefundHandler(e.db, e.pay)))
	mux.HandleFunc("GET /api/users", auth.RequireAdmin(e.db, admin.ListUsersHandler(e.db)))
	mux.HandleFunc("PUT /api/users/{id}", auth.RequireAdmin(e.db, admin.UpdateUserRoleHandler(e.db)))
	mux.HandleFunc("DELETE /api/users/{id}", auth.RequireAdmin(e.db, admin.DeleteUserHandler(e.db)))

	do := func(u *model.User, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.AddCookie(testutil.AuthCookie(t, u))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr
	}

	rr := do(e.buyer, http.MethodGet, "/api/admin/orders", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(e.admin, http.MethodGet, "/api/admin/orders?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(e.admin, http.MethodGet, "/api/admin/orders?status=paid", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), e.buyer.Email)

	rr = do(e.admin, http.MethodPost, "/api/admin", fmt.Sprintf(`{"orderId":%d,"trackingNumber":"ZTO1"}`, o.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"status":"shipped"`)

	rr = do(e.admin, http.MethodPut, "/api/admin", fmt.Sprintf(`{"orderId":%d,"status":"cancelled"}`, o.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Only unpaid orders can be cancelled"}`, rr.Body.String())

	rr = do(e.admin, http.MethodPut, "/api/admin/refunds/abc", `{"status":"approved","response":"ok"}`)
	assert.JSONEq(t, `{"error":"Invalid refund ID"}`, rr.Body.String())
	rr = do(e.admin, http.MethodPut, "/api/admin/refunds/9999", `{"status":"approved","response":"ok"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Refund not found"}`, rr.Body.String())

	r, err := order.RequestRefund(e.db, e.buyer, o.ID, "wrong size")
	require.NoError(t, err)
	rr = do(e.admin, http.MethodGet, "/api/admin/refunds", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "wrong size")

	e.gw.FailRefunds = true
	rr = do(e.admin, http.MethodPut, fmt.Sprintf("/api/admin/refunds/%d", r.ID), `{"status":"approved","response":"ok"}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	e.gw.FailRefunds = false

	rr = do(e.admin, http.MethodPut, fmt.Sprintf("/api/users/%d", e.buyer.ID), `{"role":"superuser"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(e.admin, http.MethodPut, fmt.Sprintf("/api/users/%d", e.buyer.ID), `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role":"ADMIN"`)

	rr = do(e.admin, http.MethodDelete, fmt.Sprintf("/api/users/%d", e.admin.ID), "")
	assert.JSONEq(t, `{"error":"Cannot delete yourself"}`, rr.Body.String())

	other := testutil.CreateUser(t, e.db, model.RoleUser)
	rr = do(e.admin, http.MethodDelete, fmt.Sprintf("/api/users/%d", other.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	_, err = database.GetUser(e.db, other.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	rr = do(e.admin, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), other.Email)
}
