package render

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/auth"
	"petshop/cart"
	"petshop/config"
	"petshop/database"
	"petshop/i18n"
	"petshop/mappers"
	"petshop/model"
	"petshop/order"
	"petshop/payment"
	"petshop/product"
	"petshop/respond"
)

// Pages renders the storefront for one database.
type Pages struct {
	db  *sqlx.DB
	rr  *Renderer
	pay *payment.Service
}

func NewPages(db *sqlx.DB, rr *Renderer, pay *payment.Service) *Pages {
	return &Pages{db: db, rr: rr, pay: pay}
}

// Handler routes /{lang}/... to the page handlers. Unlocalized paths are
// redirected and the session user is attached for the cart and order pages.
func (p *Pages) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{lang}/{$}", p.page(p.home))
	mux.HandleFunc("GET /{lang}/products", p.page(p.products))
	mux.HandleFunc("GET /{lang}/products/{id}", p.page(p.product))
	mux.HandleFunc("GET /{lang}/categories", p.page(p.categories))
	mux.HandleFunc("GET /{lang}/categories/{slug}", p.page(p.category))
	mux.HandleFunc("GET /{lang}/cart", p.page(p.signedIn(p.cart)))
	mux.HandleFunc("POST /{lang}/cart", p.action(p.addToCart))
	mux.HandleFunc("POST /{lang}/cart/{id}/remove", p.action(p.removeFromCart))
	mux.HandleFunc("GET /{lang}/checkout", p.page(p.signedIn(p.checkout)))
	mux.HandleFunc("POST /{lang}/checkout", p.action(p.placeOrder))
	mux.HandleFunc("GET /{lang}/orders", p.page(p.signedIn(p.orders)))
	mux.HandleFunc("GET /{lang}/orders/{id}", p.page(p.order))
	mux.HandleFunc("POST /{lang}/orders/{id}/pay", p.action(p.payOrder))
	mux.HandleFunc("POST /{lang}/orders/{id}/cancel", p.action(p.cancelOrder))
	mux.HandleFunc("POST /{lang}/orders/{id}/confirm", p.action(p.confirmOrder))
	mux.HandleFunc("POST /{lang}/orders/{id}/refund", p.action(p.requestRefund))
	mux.HandleFunc("GET /{lang}/profile", p.page(p.signedIn(p.profile)))
	mux.HandleFunc("POST /{lang}/profile/addresses", p.action(p.addAddress))
	mux.HandleFunc("POST /{lang}/profile/addresses/{id}/delete", p.action(p.deleteAddress))
	mux.HandleFunc("GET /{lang}/admin", p.page(p.signedIn(p.staffOnly(p.admin))))
	mux.HandleFunc("POST /{lang}/admin/orders/{id}/ship", p.action(p.shipOrder))
	mux.HandleFunc("POST /{lang}/admin/orders/{id}/cancel", p.action(p.cancelOrder))
	mux.HandleFunc("POST /{lang}/admin/refunds/{id}", p.action(p.decideRefund))
	mux.HandleFunc("GET /{lang}/login", p.page(p.loginForm))
	mux.HandleFunc("POST /{lang}/login", p.login)
	mux.HandleFunc("POST /{lang}/logout", p.logout)
	mux.HandleFunc("GET /{lang}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
	})

	defaultLang := func() string { return config.GetConfig().Shop.DefaultLang }
	return i18n.Redirect(defaultLang, auth.Authenticate(p.db, mux))
}

// pageFunc fills in the page and returns the template name and status.
type pageFunc func(r *http.Request, pg *Page) (string, int, error)

var errNotFound = errors.New("page not found")

// newPage returns the page skeleton for r, or nil for an unknown language.
func newPage(r *http.Request) *Page {
	lang := r.PathValue("lang")
	if !i18n.Supported(lang) {
		return nil
	}
	pg := &Page{
		L:         i18n.New(lang),
		Lang:      lang,
		OtherLang: i18n.Other(lang),
		Path:      strings.TrimPrefix(r.URL.Path, "/"+lang),
		User:      auth.UserFrom(r.Context()),
	}
	if r.URL.RawQuery != "" {
		pg.Path += "?" + r.URL.RawQuery
	}
	return pg
}

func (p *Pages) page(fn pageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg := newPage(r)
		if pg == nil {
			http.NotFound(w, r)
			return
		}
		name, status, err := fn(r, pg)
		if err != nil {
			name, status = "message", http.StatusInternalServerError
			if errors.Is(err, errNotFound) || errors.Is(err, model.ErrNotFound) {
				status = http.StatusNotFound
				if pg.Data == nil {
					pg.Data = pg.L.T("error.generic")
				}
			} else {
				zap.L().Error("failed to load page", zap.String("path", r.URL.Path), zap.Error(err))
				pg.Data = pg.L.T("error.generic")
			}
		}
		p.rr.Render(w, status, name, pg)
	}
}

func (p *Pages) signedIn(fn pageFunc) pageFunc {
	return func(r *http.Request, pg *Page) (string, int, error) {
		if pg.User == nil {
			pg.Data = pg.L.T("auth.required")
			return "message", http.StatusUnauthorized, nil
		}
		return fn(r, pg)
	}
}

func (p *Pages) staffOnly(fn pageFunc) pageFunc {
	return func(r *http.Request, pg *Page) (string, int, error) {
		if !pg.User.IsAdmin() {
			pg.Data = pg.L.T("auth.forbidden")
			return "message", http.StatusForbidden, nil
		}
		return fn(r, pg)
	}
}

func (p *Pages) home(r *http.Request, pg *Page) (string, int, error) {
	featured := true
	products, err := database.ListProducts(p.db, database.ProductFilter{Featured: &featured, Limit: 8})
	if err != nil {
		return "", 0, err
	}
	cats, err := database.ListCategories(p.db)
	if err != nil {
		return "", 0, err
	}
	pg.Data = struct {
		Featured   []mappers.ProductView
		Categories []model.Category
	}{mappers.ToProductViews(products), cats}
	return "home", http.StatusOK, nil
}

func (p *Pages) products(r *http.Request, pg *Page) (string, int, error) {
	f := product.FilterFromQuery(r)
	products, err := database.ListProducts(p.db, f)
	if err != nil {
		return "", 0, err
	}
	pg.Title = pg.L.T("nav.products")
	pg.Data = struct {
		Query    string
		Products []mappers.ProductView
	}{f.Query, mappers.ToProductViews(products)}
	return "products", http.StatusOK, nil
}

func (p *Pages) product(r *http.Request, pg *Page) (string, int, error) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		pg.Data = pg.L.T("product.notFound")
		return "", 0, errNotFound
	}
	prod, err := database.GetProduct(p.db, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			pg.Data = pg.L.T("product.notFound")
		}
		return "", 0, err
	}
	pg.Title = prod.Name
	pg.Data = mappers.ToProductView(*prod)
	return "product", http.StatusOK, nil
}

func (p *Pages) categories(r *http.Request, pg *Page) (string, int, error) {
	cats, err := database.ListCategories(p.db)
	if err != nil {
		return "", 0, err
	}
	pg.Title = pg.L.T("nav.categories")
	pg.Data = cats
	return "categories", http.StatusOK, nil
}

func (p *Pages) category(r *http.Request, pg *Page) (string, int, error) {
	view, err := product.LoadCategory(p.db, r.PathValue("slug"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			pg.Data = pg.L.T("category.notFound")
		}
		return "", 0, err
	}
	pg.Title = view.Name
	pg.Data = view
	return "category", http.StatusOK, nil
}

func (p *Pages) cart(r *http.Request, pg *Page) (string, int, error) {
	view, err := cart.Load(p.db, pg.User.ID)
	if err != nil {
		return "", 0, err
	}
	pg.Title = pg.L.T("cart.title")
	pg.Data = struct {
		Cart               mappers.CartView
		FreeThresholdCents int64
	}{view, config.GetConfig().Shop.FreeShippingThresholdCents}
	return "cart", http.StatusOK, nil
}

func (p *Pages) orders(r *http.Request, pg *Page) (string, int, error) {
	orders, err := database.ListOrdersByUser(p.db, pg.User.ID)
	if err != nil {
		return "", 0, err
	}
	pg.Title = pg.L.T("orders.title")
	pg.Data = mappers.ToOrderViews(orders)
	return "orders", http.StatusOK, nil
}

func (p *Pages) order(r *http.Request, pg *Page) (string, int, error) {
	if pg.User == nil {
		pg.Data = pg.L.T("auth.required")
		return "message", http.StatusUnauthorized, nil
	}
	id, err := respond.PathID(r, "id")
	if err != nil {
		pg.Data = pg.L.T("order.notFound")
		return "", 0, errNotFound
	}
	if intentID := r.URL.Query().Get("payment"); intentID != "" {
		if _, err := p.pay.SyncPayment(r.Context(), pg.User, intentID); err != nil {
			zap.L().Warn("failed to sync payment", zap.Int64("orderId", id), zap.String("intentId", intentID), zap.Error(err))
		}
	}
	o, err := order.Get(p.db, pg.User, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			pg.Data = pg.L.T("order.notFound")
		}
		return "", 0, err
	}
	pg.Title = pg.L.T("orders.number", o.OrderNo)
	pg.Data = mappers.ToOrderView(*o)
	return "order", http.StatusOK, nil
}

func (p *Pages) checkout(r *http.Request, pg *Page) (string, int, error) {
	view, err := cart.Load(p.db, pg.User.ID)
	if err != nil {
		return "", 0, err
	}
	addrs, err := database.ListAddresses(p.db, pg.User.ID)
	if err != nil {
		return "", 0, err
	}
	pg.Title = pg.L.T("checkout.title")
	pg.Data = struct {
		Cart      mappers.CartView
		Addresses []model.Address
	}{view, addrs}
	return "checkout", http.StatusOK, nil
}

func (p *Pages) profile(r *http.Request, pg *Page) (string, int, error) {
	addrs, err := database.ListAddresses(p.db, pg.User.ID)
	if err != nil {
		return "", 0, err
	}
	pg.Title = pg.L.T("profile.title")
	pg.Data = addrs
	return "profile", http.StatusOK, nil
}

func (p *Pages) admin(r *http.Request, pg *Page) (string, int, error) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidStatus(status) {
		status = ""
	}
	orders, err := database.ListOrders(p.db, status)
	if err != nil {
		return "", 0, err
	}
	refunds, err := database.ListRefunds(p.db)
	if err != nil {
		return "", 0, err
	}
	pending := refunds[:0]
	for _, rf := range refunds {
		if rf.Status == model.RefundPending {
			pending = append(pending, rf)
		}
	}
	pg.Title = pg.L.T("admin.title")
	pg.Data = struct {
		Status   string
		Statuses []string
		Orders   []model.AdminOrder
		Refunds  []model.RefundView
	}{status, model.OrderStatuses, orders, pending}
	return "admin", http.StatusOK, nil
}

func (p *Pages) loginForm(r *http.Request, pg *Page) (string, int, error) {
	pg.Title = pg.L.T("login.title")
	pg.Data = loginData{Next: safeNext(r.URL.Query().Get("next"), pg.Lang)}
	return "login", http.StatusOK, nil
}
