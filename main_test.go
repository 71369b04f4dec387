package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"petshop/auth"
	"petshop/config"
	"petshop/model"
	"petshop/payment"
	"petshop/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == auth.CookieName {
			c.cookie = ck
		}
	}
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestCheckoutEndToEnd(t *testing.T) {
	db := testutil.NewDB(t)
	cat := testutil.CreateCategory(t, db, "cat-food")
	prod := testutil.CreateProduct(t, db, cat.ID, 4900, 10)
	staffUser := testutil.CreateUser(t, db, model.RoleAdmin)

	h, err := newHandler(db, testutil.Config())
	require.NoError(t, err)
	buyer := &client{t: t, h: h}
	staff := &client{t: t, h: h, cookie: testutil.AuthCookie(t, staffUser)}

	rr := buyer.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.StatusUnauthorized, buyer.do(http.MethodGet, "/api/cart", "").Code)

	rr = buyer.do(http.MethodPost, "/api/auth/register", `{"name":"Li Lei","email":"lilei@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.NotNil(t, buyer.cookie)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = buyer.do(http.MethodPost, "/api/cart", fmt.Sprintf(`{"productId":%d,"quantity":2}`, prod.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = buyer.do(http.MethodPost, "/api/addresses", `{"name":"Li Lei","phone":"13800000000","province":"Zhejiang","city":"Hangzhou","district":"Xihu","detail":"1 Lake Rd"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	addr := decode[model.Address](t, rr)

	rr = buyer.do(http.MethodPost, "/api/orders", fmt.Sprintf(`{"addressId":%q}`, addr.ID))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	o := decode[model.Order](t, rr)
	assert.Equal(t, int64(10800), o.TotalCents)
	assert.Equal(t, "Zhejiang Hangzhou Xihu 1 Lake Rd", o.Address)

	rr = buyer.do(http.MethodPost, "/api/payments", fmt.Sprintf(`{"orderId":%d,"paymentMethod":"wechat_pay"}`, o.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	intent := decode[payment.CreateResult](t, rr)
	assert.Equal(t, "cny", intent.Currency)

	payload := fmt.Sprintf(`{"id":"evt_e2e","type":"payment_intent.succeeded","data":{"object":{"id":%q}}}`, intent.PaymentIntentID)
	signer := payment.NewFakeGateway("whsec_test", false)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(payload))
	req.Header.Set(signer.SignatureHeader(), signer.Sign([]byte(payload)))
	wr := httptest.NewRecorder()
	h.ServeHTTP(wr, req)
	require.Equal(t, http.StatusOK, wr.Code, wr.Body.String())

	rr = buyer.do(http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[struct{ Count int }](t, rr).Count)

	rr = staff.do(http.MethodPost, "/api/admin", fmt.Sprintf(`{"orderId":%d,"trackingNumber":"SF1001"}`, o.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = buyer.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/confirm", o.ID), "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, model.StatusCompleted, decode[model.Order](t, rr).Status)

	rr = staff.do(http.MethodGet, "/api/admin/dashboard", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"revenueCents":10800`)

	assert.Equal(t, http.StatusForbidden, buyer.do(http.MethodGet, "/api/admin/orders", "").Code)

	rr = buyer.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rr.Code)
	rr = buyer.do(http.MethodGet, "/en/orders", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), o.OrderNo)
	assert.Equal(t, http.StatusOK, buyer.do(http.MethodGet, "/static/app.css", "").Code)
}

func TestConfigHandlers(t *testing.T) {
	db := testutil.NewDB(t)
	staffUser := testutil.CreateUser(t, db, model.RoleAdmin)
	h, err := newHandler(db, testutil.Config())
	require.NoError(t, err)
	staff := &client{t: t, h: h, cookie: testutil.AuthCookie(t, staffUser)}

	rr := staff.do(http.MethodGet, "/api/admin/config", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(10000), decode[config.ShopConfig](t, rr).FreeShippingThresholdCents)

	rr = staff.do(http.MethodPost, "/api/admin/config", `{"freeShippingThresholdCents":-1,"shippingFeeCents":0,"defaultLang":"en","analyticsDays":30}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = staff.do(http.MethodPost, "/api/admin/config", `{"freeShippingThresholdCents":5000,"shippingFeeCents":800,"defaultLang":"zh","analyticsDays":14}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := config.GetConfig().Shop
	assert.Equal(t, int64(5000), got.FreeShippingThresholdCents)
	assert.Equal(t, "zh", got.DefaultLang)

	rr = staff.do(http.MethodGet, "/", "")
	assert.Equal(t, "/zh/", rr.Header().Get("Location"))
}

func TestServeRefusesUnsafeProductionConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "prod.db")
	cfg := config.Default()
	cfg.Server.Production = true
	cfg.Database.DSN = "file:" + dbPath

	err := serve(context.Background(), cfg, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to start in production")
	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "database must not be opened")
}
