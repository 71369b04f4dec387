package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferred(t *testing.T) {
	cases := []struct {
		accept, fallback, want string
	}{
		{"zh-CN,zh;q=0.9,en;q=0.8", English, Chinese},
		{"en-US,en;q=0.9", Chinese, English},
		{"fr-FR", Chinese, Chinese},
		{"", Chinese, Chinese},
		{"", "de", English},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.accept != "" {
			r.Header.Set("Accept-Language", c.accept)
		}
		assert.Equal(t, c.want, Preferred(r, c.fallback), c.accept)
	}
}

func TestLocalizer(t *testing.T) {
	en, zh := New(English), New(Chinese)
	assert.Equal(t, "Shopping Cart", en.T("cart.title"))
	assert.Equal(t, "购物车", zh.T("cart.title"))
	assert.Equal(t, "In stock: 5", en.T("product.stock", 5))
	assert.Equal(t, "已发货", zh.Status("shipped"))
	assert.Equal(t, "no.such.key", en.T("no.such.key"))
	assert.Equal(t, "¥1,299.00", en.Money(129900))
	assert.Equal(t, "¥29.00", zh.Money(2900))
	assert.Equal(t, English, New("fr").Lang)
}

func TestRedirect(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := Redirect(func() string { return Chinese }, ok)

	cases := []struct {
		path, accept string
		code         int
		location     string
	}{
		{"/", "", http.StatusFound, "/zh/"},
		{"/products?q=cat", "en-GB", http.StatusFound, "/en/products?q=cat"},
		{"/en/cart", "", http.StatusTeapot, ""},
		{"/zh", "", http.StatusTeapot, ""},
		{"/api/products", "", http.StatusTeapot, ""},
		{"/static/app.css", "", http.StatusTeapot, ""},
		{"/healthz", "", http.StatusTeapot, ""},
		{"/english", "", http.StatusFound, "/zh/english"},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, c.path, nil)
		if c.accept != "" {
			r.Header.Set("Accept-Language", c.accept)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		assert.Equal(t, c.code, rr.Code, c.path)
		assert.Equal(t, c.location, rr.Header().Get("Location"), c.path)
	}
}
