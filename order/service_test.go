package order_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"petshop/database"
	"petshop/model"
	"petshop/money"
	"petshop/order"
	"petshop/payment"
	"petshop/respond"
	"petshop/testutil"
)

var rule = money.ShippingRule{FreeThresholdCents: 10000, FeeCents: 1000}

type env struct {
	db    *sqlx.DB
	user  *model.User
	cheap *model.Product
	big   *model.Product
	gw    *payment.FakeGateway
	pay   *payment.Service
}

func newEnv(t *testing.T) env {
	db := testutil.NewDB(t)
	cat := testutil.CreateCategory(t, db, "cat-food")
	gw := payment.NewFakeGateway("whsec_test", false)
	return env{
		gw:    gw,
		pay:   payment.NewService(db, gw),
		db:    db,
		user:  testutil.CreateUser(t, db, model.RoleUser),
		cheap: testutil.CreateProduct(t, db, cat.ID, 2900, 5),
		big:   testutil.CreateProduct(t, db, cat.ID, 19900, 2),
	}
}

func (e env) order(t *testing.T, items ...order.ItemRequest) *model.Order {
	t.Helper()
	o, err := order.Create(e.db, e.user, order.CreateRequest{Address: "Hangzhou", Phone: "138", Items: items}, rule)
	require.NoError(t, err)
	return o
}

func badRequest(t *testing.T, err error, msg string) {
	t.Helper()
	var bad *respond.BadRequestError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, msg, bad.Msg)
}

func TestCreateUsesCatalogPricesAndShipping(t *testing.T) {
	e := newEnv(t)

	o := e.order(t, order.ItemRequest{ProductID: e.cheap.ID, Quantity: 1}, order.ItemRequest{ProductID: e.cheap.ID, Quantity: 1})
	assert.Equal(t, model.StatusPending, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, int64(5800), o.SubtotalCents)
	assert.Equal(t, int64(1000), o.ShippingFeeCents)
	assert.Equal(t, int64(6800), o.TotalCents)
	assert.Equal(t, e.user.Name, o.Recipient)

	free := e.order(t, order.ItemRequest{ProductID: e.big.ID, Quantity: 1})
	assert.Equal(t, int64(0), free.ShippingFeeCents)
	assert.Equal(t, int64(19900), free.TotalCents)

	p, err := database.GetProduct(e.db, e.cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestCreateFromCartAndAddress(t *testing.T) {
	e := newEnv(t)
	_, err := order.Create(e.db, e.user, order.CreateRequest{Address: "x", Phone: "1"}, rule)
	badRequest(t, err, "Cart is empty")

	_, err = database.AddToCart(e.db, e.user.ID, e.cheap.ID, 2)
	require.NoError(t, err)
	a := &model.Address{ID: "addr-1", UserID: e.user.ID, Name: "Han Meimei", Phone: "139", Province: "Zhejiang", City: "Hangzhou", District: "Xihu", Detail: "1 Rd"}
	require.NoError(t, database.InsertAddress(e.db, a))

	o, err := order.Create(e.db, e.user, order.CreateRequest{AddressID: a.ID}, rule)
	require.NoError(t, err)
	assert.Equal(t, "Han Meimei", o.Recipient)
	assert.Equal(t, "Zhejiang Hangzhou Xihu 1 Rd", o.Address)
	assert.Equal(t, "139", o.Phone)
	assert.Equal(t, int64(5800), o.SubtotalCents)

	lines, err := database.ListCart(e.db, e.user.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1, "cart is kept until payment succeeds")

	other := testutil.CreateUser(t, e.db, model.RoleUser)
	_, err = order.Create(e.db, other, order.CreateRequest{AddressID: a.ID, Items: []order.ItemRequest{{ProductID: e.cheap.ID, Quantity: 1}}}, rule)
	badRequest(t, err, "Address not found")
}

func TestCreateRejects(t *testing.T) {
	e := newEnv(t)
	items := []order.ItemRequest{{ProductID: e.big.ID, Quantity: 3}}

	_, err := order.Create(e.db, e.user, order.CreateRequest{Items: items}, rule)
	badRequest(t, err, "Address and phone are required")

	_, err = order.Create(e.db, e.user, order.CreateRequest{Address: "a", Phone: "1", Items: items}, rule)
	assert.ErrorIs(t, err, model.ErrOutOfStock)

	_, err = order.Create(e.db, e.user, order.CreateRequest{Address: "a", Phone: "1", Items: []order.ItemRequest{{ProductID: e.big.ID, Quantity: 0}}}, rule)
	badRequest(t, err, "Invalid cart item data")

	_, err = order.Create(e.db, e.user, order.CreateRequest{Address: "a", Phone: "1", Items: []order.ItemRequest{{ProductID: 404, Quantity: 1}}}, rule)
	badRequest(t, err, "Product 404 not found")

	p, err := database.GetProduct(e.db, e.big.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock, "failed checkout reserves nothing")

	n, err := database.CountOrders(context.Background(), e.db)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConfirmAndRefund(t *testing.T) {
	e := newEnv(t)
	o := e.order(t, order.ItemRequest{ProductID: e.cheap.ID, Quantity: 1})

	_, err := order.Confirm(e.db, e.user, o.ID)
	badRequest(t, err, "Order cannot be confirmed")
	_, err = order.RequestRefund(e.db, e.user, o.ID, "changed my mind")
	badRequest(t, err, "Order is not eligible for refund")

	require.NoError(t, database.SetPaymentIntent(e.db, o.ID, model.StatusPending, "pi_1", model.PaymentCard, "usd"))
	require.NoError(t, database.TransitionOrder(e.db, o.ID, model.StatusPaymentPending, model.StatusPaid))

	_, err = order.RequestRefund(e.db, e.user, o.ID, "  ")
	badRequest(t, err, "Refund reason is required")

	other := testutil.CreateUser(t, e.db, model.RoleUser)
	_, err = order.RequestRefund(e.db, other, o.ID, "mine now")
	assert.ErrorIs(t, err, model.ErrNotFound)

	r, err := order.RequestRefund(e.db, e.user, o.ID, "damaged")
	require.NoError(t, err)
	assert.Equal(t, o.TotalCents, r.AmountCents)
	assert.Equal(t, model.StatusPaid, r.PreviousStatus)

	got, err := order.Get(e.db, e.user, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefundPending, got.Status)
	require.Len(t, got.Refunds, 1)

	_, err = order.RequestRefund(e.db, e.user, o.ID, "again")
	badRequest(t, err, "Order is not eligible for refund")

	require.NoError(t, database.TransitionOrder(e.db, o.ID, model.StatusRefundPending, model.StatusShipped))
	_, err = order.RequestRefund(e.db, e.user, o.ID, "again")
	badRequest(t, err, "A refund request is already pending")

	done, err := order.Confirm(e.db, e.user, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
}

func TestCancelRestoresStock(t *testing.T) {
	e := newEnv(t)
	o := e.order(t, order.ItemRequest{ProductID: e.cheap.ID, Quantity: 4})

	other := testutil.CreateUser(t, e.db, model.RoleUser)
	_, err := order.Cancel(context.Background(), e.db, e.pay, other, o.ID, "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	cancelled, err := order.Cancel(context.Background(), e.db, e.pay, e.user, o.ID, "ordered twice")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, "ordered twice", cancelled.CancelReason)

	p, err := database.GetProduct(e.db, e.cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	_, err = order.Cancel(context.Background(), e.db, e.pay, e.user, o.ID, "")
	badRequest(t, err, "Only unpaid orders can be cancelled")
}

func TestCancelVoidsPaymentIntent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.order(t, order.ItemRequest{ProductID: e.cheap.ID, Quantity: 1})
	res, err := e.pay.CreatePayment(ctx, e.user, o.ID, model.PaymentAlipay)
	require.NoError(t, err)

	cancelled, err := order.Cancel(ctx, e.db, e.pay, e.user, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	in, err := e.gw.GetIntent(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, payment.IntentCanceled, in.Status)
}

func TestCancelRefusesPaidIntent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.order(t, order.ItemRequest{ProductID: e.cheap.ID, Quantity: 2})
	res, err := e.pay.CreatePayment(ctx, e.user, o.ID, model.PaymentWechat)
	require.NoError(t, err)
	e.gw.SetStatus(res.PaymentIntentID, payment.IntentSucceeded)

	_, err = order.Cancel(ctx, e.db, e.pay, e.user, o.ID, "")
	assert.ErrorIs(t, err, model.ErrPaymentCaptured)

	stored, err := database.GetOrder(e.db, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaymentPending, stored.Status)
	p, err := database.GetProduct(e.db, e.cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock, "stock stays reserved for the paid order")
}

func TestAdminSeesEveryOrder(t *testing.T) {
	e := newEnv(t)
	o := e.order(t, order.ItemRequest{ProductID: e.cheap.ID, Quantity: 1})
	admin := testutil.CreateUser(t, e.db, model.RoleAdmin)
	stranger := testutil.CreateUser(t, e.db, model.RoleUser)

	_, err := order.Get(e.db, admin, o.ID)
	assert.NoError(t, err)
	_, err = order.Get(e.db, stranger, o.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
