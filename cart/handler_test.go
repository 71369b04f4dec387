package cart_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"petshop/auth"
	"petshop/cart"
	"petshop/mappers"
	"petshop/model"
	"petshop/testutil"
)

type fixture struct {
	db   *sqlx.DB
	mux  *http.ServeMux
	user *model.User
	p    *model.Product
}

func setup(t *testing.T) fixture {
	db := testutil.NewDB(t)
	cat := testutil.CreateCategory(t, db, "cat-food")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cart", auth.RequireUser(db, cart.GetCartHandler(db)))
	mux.HandleFunc("POST /api/cart", auth.RequireUser(db, cart.AddToCartHandler(db)))
	mux.HandleFunc("PUT /api/cart/{id}", auth.RequireUser(db, cart.UpdateCartItemHandler(db)))
	mux.HandleFunc("DELETE /api/cart", auth.RequireUser(db, cart.DeleteCartItemHandler(db)))
	mux.HandleFunc("DELETE /api/cart/{id}", auth.RequireUser(db, cart.DeleteCartItemHandler(db)))
	mux.HandleFunc("DELETE /api/cart/all", auth.RequireUser(db, cart.ClearCartHandler(db)))
	return fixture{
		db:   db,
		mux:  mux,
		user: testutil.CreateUser(t, db, model.RoleUser),
		p:    testutil.CreateProduct(t, db, cat.ID, 2900, 10),
	}
}

func (f fixture) do(t *testing.T, u *model.User, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if u != nil {
		req.AddCookie(testutil.AuthCookie(t, u))
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func TestAddIncrementsAndTotals(t *testing.T) {
	f := setup(t)
	body := fmt.Sprintf(`{"productId":%d,"quantity":2}`, f.p.ID)

	rr := f.do(t, f.user, http.MethodPost, "/api/cart", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = f.do(t, f.user, http.MethodPost, "/api/cart", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var line struct {
		Quantity int `json:"quantity"`
		Product  struct {
			Category struct {
				Slug string `json:"slug"`
			} `json:"category"`
		} `json:"product"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &line))
	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, "cat-food", line.Product.Category.Slug)

	rr = f.do(t, f.user, http.MethodGet, "/api/cart", "")
	var view mappers.CartView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(11600), view.SubtotalCents)
	assert.Equal(t, int64(0), view.ShippingFeeCents)
	assert.Equal(t, "116.00", view.Total)
}

func TestAddValidation(t *testing.T) {
	f := setup(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, nil, http.MethodPost, "/api/cart", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, f.user, http.MethodPost, "/api/cart", fmt.Sprintf(`{"productId":%d,"quantity":0}`, f.p.ID)).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, f.user, http.MethodPost, "/api/cart", fmt.Sprintf(`{"productId":%d,"quantity":1.5}`, f.p.ID)).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, f.user, http.MethodPost, "/api/cart", `{"productId":999,"quantity":1}`).Code)

	rr := f.do(t, f.user, http.MethodPost, "/api/cart", fmt.Sprintf(`{"productId":%d}`, f.p.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid request body - productId and quantity are required"}`, rr.Body.String())

	rr = f.do(t, f.user, http.MethodPost, "/api/cart", `{"productId":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rr.Body.String())
}

func TestUpdateDeleteOwnership(t *testing.T) {
	f := setup(t)
	other := testutil.CreateUser(t, f.db, model.RoleUser)

	rr := f.do(t, f.user, http.MethodPost, "/api/cart", fmt.Sprintf(`{"productId":%d}`, f.p.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	var line struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &line))
	path := fmt.Sprintf("/api/cart/%d", line.ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, other, http.MethodPut, path, `{"quantity":3}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, other, http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, f.user, http.MethodPut, path, `{"quantity":0}`).Code)
	assert.Equal(t, http.StatusOK, f.do(t, f.user, http.MethodPut, path, `{"quantity":3}`).Code)

	assert.Equal(t, http.StatusOK, f.do(t, f.user, http.MethodDelete, fmt.Sprintf("/api/cart?id=%d", line.ID), "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, f.user, http.MethodDelete, path, "").Code)
}

func TestClearCart(t *testing.T) {
	f := setup(t)
	f.do(t, f.user, http.MethodPost, "/api/cart", fmt.Sprintf(`{"productId":%d}`, f.p.ID))

	rr := f.do(t, f.user, http.MethodDelete, "/api/cart/all", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"removed":1}`, rr.Body.String())

	view, err := cart.Load(f.db, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}
