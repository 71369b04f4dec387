package address_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"petshop/address"
	"petshop/auth"
	"petshop/database"
	"petshop/model"
	"petshop/testutil"
)

const body = `{"name":"Li Lei","phone":"13800000000","province":"Zhejiang","city":"Hangzhou","district":"Xihu","detail":"1 West Lake Rd"%s}`

func TestAddressLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, model.RoleUser)
	other := testutil.CreateUser(t, db, model.RoleUser)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/addresses", auth.RequireUser(db, address.ListAddressesHandler(db)))
	mux.HandleFunc("POST /api/addresses", auth.RequireUser(db, address.CreateAddressHandler(db)))
	mux.HandleFunc("DELETE /api/addresses/{id}", auth.RequireUser(db, address.DeleteAddressHandler(db)))
	mux.HandleFunc("PUT /api/addresses/{id}/default", auth.RequireUser(db, address.SetDefaultAddressHandler(db)))

	do := func(u *model.User, method, path, payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(payload))
		req.AddCookie(testutil.AuthCookie(t, u))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr
	}
	create := func(extra string) model.Address {
		rr := do(user, http.MethodPost, "/api/addresses", strings.Replace(body, "%s", extra, 1))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var a model.Address
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
		return a
	}

	first := create("")
	assert.True(t, first.IsDefault, "first address becomes default")
	second := create("")
	assert.False(t, second.IsDefault)
	third := create(`,"isDefault":true`)
	assert.True(t, third.IsDefault)

	list, err := database.ListAddresses(db, user.ID)
	require.NoError(t, err)
	defaults := 0
	for _, a := range list {
		if a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	assert.Equal(t, third.ID, list[0].ID)

	rr := do(user, http.MethodPost, "/api/addresses", `{"name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, http.StatusUnauthorized, do(other, http.MethodDelete, "/api/addresses/"+first.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(user, http.MethodDelete, "/api/addresses/nope", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(other, http.MethodPut, "/api/addresses/"+first.ID+"/default", "").Code)

	rr = do(user, http.MethodPut, "/api/addresses/"+first.ID+"/default", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got, err := database.GetAddress(db, third.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)

	rr = do(user, http.MethodDelete, "/api/addresses/"+first.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	list, err = database.ListAddresses(db, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsDefault, "a remaining address is promoted")

	rr = do(user, http.MethodGet, "/api/addresses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(other, http.MethodGet, "/api/addresses", "")
	assert.JSONEq(t, `[]`, rr.Body.String())
}
