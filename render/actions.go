package render

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"petshop/address"
	"petshop/admin"
	"petshop/auth"
	"petshop/cart"
	"petshop/config"
	"petshop/database"
	"petshop/i18n"
	"petshop/model"
	"petshop/order"
	"petshop/respond"
)

const maxFormBytes = 1 << 20

// actionFunc handles a form post from a signed-in user and returns the page
// to send the browser to.
type actionFunc func(r *http.Request, pg *Page) (string, error)

// action parses the form and runs fn. Anonymous visitors are sent to the
// login page; failures are rendered as a message page with the status the
// JSON API would use.
func (p *Pages) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg := newPage(r)
		if pg == nil {
			http.NotFound(w, r)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			pg.Data = "Invalid form"
			p.rr.Render(w, http.StatusBadRequest, "message", pg)
			return
		}
		if pg.User == nil {
			next := safeNext(r.PostFormValue("next"), pg.Lang)
			http.Redirect(w, r, "/"+pg.Lang+"/login?next="+url.QueryEscape(next), http.StatusSeeOther)
			return
		}
		target, err := fn(r, pg)
		if err != nil {
			status, msg := formError(err, pg)
			pg.Data = msg
			p.rr.Render(w, status, "message", pg)
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

func formError(err error, pg *Page) (int, string) {
	if errors.Is(err, admin.ErrGatewayRefund) {
		return http.StatusBadGateway, "Payment gateway refund failed"
	}
	status, msg := respond.Status(err, pg.L.T("error.generic"))
	if status == http.StatusInternalServerError {
		zap.L().Error("form action failed", zap.String("path", pg.Path), zap.Error(err))
	}
	return status, msg
}

// safeNext keeps redirects on this site.
func safeNext(next, lang string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/" + lang + "/"
	}
	return next
}

func formInt(r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue(name)), 10, 64)
	return n, err == nil
}

func (p *Pages) orderPath(pg *Page, id int64) string {
	return fmt.Sprintf("/%s/orders/%d", pg.Lang, id)
}

type loginData struct {
	Next  string
	Email string
	Error string
}

func (p *Pages) login(w http.ResponseWriter, r *http.Request) {
	pg := newPage(r)
	if pg == nil {
		http.NotFound(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	_ = r.ParseForm()
	data := loginData{Next: safeNext(r.PostFormValue("next"), pg.Lang), Email: r.PostFormValue("email")}
	pg.Title = pg.L.T("login.title")

	u, err := auth.Login(p.db, data.Email, r.PostFormValue("password"))
	if err != nil {
		var bad *respond.BadRequestError
		status := http.StatusInternalServerError
		switch {
		case errors.As(err, &bad):
			status, data.Error = http.StatusBadRequest, pg.L.T("login.required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			status, data.Error = http.StatusUnauthorized, pg.L.T("login.invalid")
		default:
			zap.L().Error("login failed", zap.Error(err))
			data.Error = pg.L.T("error.generic")
		}
		pg.Data = data
		p.rr.Render(w, status, "login", pg)
		return
	}
	if err := auth.SetSessionCookie(w, u); err != nil {
		zap.L().Error("failed to issue session", zap.Error(err))
		pg.Data = pg.L.T("error.generic")
		p.rr.Render(w, http.StatusInternalServerError, "message", pg)
		return
	}
	zap.L().Info("user logged in", zap.Int64("userId", u.ID))
	http.Redirect(w, r, data.Next, http.StatusSeeOther)
}

func (p *Pages) logout(w http.ResponseWriter, r *http.Request) {
	lang := r.PathValue("lang")
	if !i18n.Supported(lang) {
		http.NotFound(w, r)
		return
	}
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/"+lang+"/", http.StatusSeeOther)
}

func (p *Pages) addToCart(r *http.Request, pg *Page) (string, error) {
	productID, ok := formInt(r, "productId")
	if !ok || productID <= 0 {
		return "", respond.BadRequest("Invalid request body - productId and quantity are required")
	}
	qty, ok := formInt(r, "quantity")
	if !ok {
		return "", respond.BadRequest("Invalid request body - productId and quantity are required")
	}
	if _, _, err := cart.Add(p.db, pg.User.ID, productID, int(qty)); err != nil {
		return "", err
	}
	return "/" + pg.Lang + "/cart", nil
}

func (p *Pages) removeFromCart(r *http.Request, pg *Page) (string, error) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		return "", respond.BadRequest("Invalid cart item id")
	}
	if err := database.DeleteCartItem(p.db, pg.User.ID, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("Cart item %w", model.ErrNotFound)
		}
		return "", err
	}
	return "/" + pg.Lang + "/cart", nil
}

// placeOrder orders the whole cart to a saved address and opens the payment.
func (p *Pages) placeOrder(r *http.Request, pg *Page) (string, error) {
	method := r.PostFormValue("method")
	if !model.ValidPaymentMethod(method) {
		return "", respond.BadRequest("Invalid payment method")
	}
	addressID := r.PostFormValue("addressId")
	if addressID == "" {
		return "", respond.BadRequest("Please choose a shipping address")
	}
	o, err := order.Create(p.db, pg.User, order.CreateRequest{AddressID: addressID},
		config.GetConfig().Shop.ShippingRule())
	if err != nil {
		return "", err
	}
	res, err := p.pay.CreatePayment(r.Context(), pg.User, o.ID, method)
	if err != nil {
		zap.L().Warn("order placed without payment", zap.Int64("orderId", o.ID), zap.Error(err))
		return p.orderPath(pg, o.ID), nil
	}
	return p.orderPath(pg, o.ID) + "?payment=" + url.QueryEscape(res.PaymentIntentID), nil
}

func (p *Pages) payOrder(r *http.Request, pg *Page) (string, error) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		return "", fmt.Errorf("Order %w", model.ErrNotFound)
	}
	res, err := p.pay.CreatePayment(r.Context(), pg.User, id, r.PostFormValue("method"))
	if err != nil {
		return "", err
	}
	return p.orderPath(pg, id) + "?payment=" + url.QueryEscape(res.PaymentIntentID), nil
}

// cancelOrder serves both the buyer's order page and the back office.
func (p *Pages) cancelOrder(r *http.Request, pg *Page) (string, error) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		return "", fmt.Errorf("Order %w", model.ErrNotFound)
	}
	backOffice := strings.HasPrefix(pg.Path, "/admin/")
	if backOffice && !pg.User.IsAdmin() {
		return "", model.ErrForbidden
	}
	if _, err := order.Cancel(r.Context(), p.db, p.pay, pg.User, id, r.PostFormValue("reason")); err != nil {
		return "", err
	}
	if backOffice {
		return "/" + pg.Lang + "/admin", nil
	}
	return p.orderPath(pg, id), nil
}

func (p *Pages) confirmOrder(r *http.Request, pg *Page) (string, error) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		return "", fmt.Errorf("Order %w", model.ErrNotFound)
	}
	if _, err := order.Confirm(p.db, pg.User, id); err != nil {
		return "", err
	}
	return p.orderPath(pg, id), nil
}

func (p *Pages) requestRefund(r *http.Request, pg *Page) (string, error) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		return "", fmt.Errorf("Order %w", model.ErrNotFound)
	}
	if _, err := order.RequestRefund(p.db, pg.User, id, r.PostFormValue("reason")); err != nil {
		return "", err
	}
	return p.orderPath(pg, id), nil
}

func (p *Pages) addAddress(r *http.Request, pg *Page) (string, error) {
	in := address.Input{
		Name:      r.PostFormValue("name"),
		Phone:     r.PostFormValue("phone"),
		Province:  r.PostFormValue("province"),
		City:      r.PostFormValue("city"),
		District:  r.PostFormValue("district"),
		Detail:    r.PostFormValue("detail"),
		IsDefault: r.PostFormValue("isDefault") != "",
	}
	if _, err := address.Create(p.db, pg.User.ID, in); err != nil {
		return "", err
	}
	if next := r.PostFormValue("next"); next != "" {
		return safeNext(next, pg.Lang), nil
	}
	return "/" + pg.Lang + "/profile", nil
}

func (p *Pages) deleteAddress(r *http.Request, pg *Page) (string, error) {
	err := address.Delete(p.db, pg.User, r.PathValue("id"))
	if errors.Is(err, address.ErrNotOwned) {
		return "", fmt.Errorf("Address %w", model.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return "/" + pg.Lang + "/profile", nil
}

func (p *Pages) shipOrder(r *http.Request, pg *Page) (string, error) {
	if !pg.User.IsAdmin() {
		return "", model.ErrForbidden
	}
	id, err := respond.PathID(r, "id")
	if err != nil {
		return "", fmt.Errorf("Order %w", model.ErrNotFound)
	}
	if _, err := admin.Ship(p.db, id, r.PostFormValue("trackingNumber")); err != nil {
		return "", err
	}
	return "/" + pg.Lang + "/admin", nil
}

func (p *Pages) decideRefund(r *http.Request, pg *Page) (string, error) {
	if !pg.User.IsAdmin() {
		return "", model.ErrForbidden
	}
	id, err := respond.PathID(r, "id")
	if err != nil {
		return "", fmt.Errorf("Refund %w", model.ErrNotFound)
	}
	if _, err := admin.DecideRefund(r.Context(), p.db, p.pay, id, r.PostFormValue("status"), r.PostFormValue("response")); err != nil {
		return "", err
	}
	return "/" + pg.Lang + "/admin", nil
}
