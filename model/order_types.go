package model

import "time"

// Order is a placed order. The shipping address is copied onto the order so
// later edits of the address book do not rewrite history.
type Order struct {
	ID               int64     `db:"id" json:"id"`
	OrderNo          string    `db:"order_no" json:"orderNo"`
	UserID           int64     `db:"user_id" json:"userId"`
	Status           string    `db:"status" json:"status"`
	SubtotalCents    int64     `db:"subtotal_cents" json:"subtotalCents"`
	ShippingFeeCents int64     `db:"shipping_fee_cents" json:"shippingFeeCents"`
	TotalCents       int64     `db:"total_cents" json:"totalCents"`
	Recipient        string    `db:"recipient" json:"recipient"`
	Address          string    `db:"address" json:"address"`
	Phone            string    `db:"phone" json:"phone"`
	TrackingNumber   string    `db:"tracking_number" json:"trackingNumber,omitempty"`
	PaymentIntentID  string    `db:"payment_intent_id" json:"paymentIntentId,omitempty"`
	PaymentMethod    string    `db:"payment_method" json:"paymentMethod,omitempty"`
	Currency         string    `db:"currency" json:"currency,omitempty"`
	CancelReason     string    `db:"cancel_reason" json:"cancelReason,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`

	Items   []OrderItem `db:"-" json:"items"`
	Refunds []Refund    `db:"-" json:"refunds,omitempty"`
}

// OrderItem keeps the product name and price as they were at checkout.
// ProductID becomes nil when the product is deleted from the catalog.
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"orderId"`
	ProductID   *int64 `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`
	ImageURL    string `db:"image_url" json:"imageUrl"`
	Quantity    int    `db:"quantity" json:"quantity"`
	PriceCents  int64  `db:"price_cents" json:"priceCents"`
}

// AdminOrder is an order with the buyer's contact details for the back office.
type AdminOrder struct {
	Order
	UserName  string `db:"user_name" json:"userName"`
	UserEmail string `db:"user_email" json:"userEmail"`
}

const (
	RefundPending  = "pending"
	RefundApproved = "approved"
	RefundRejected = "rejected"
)

// Refund is an after-sales request. PreviousStatus is the order status the
// order returns to when the request is rejected.
type Refund struct {
	ID             int64     `db:"id" json:"id"`
	OrderID        int64     `db:"order_id" json:"orderId"`
	AmountCents    int64     `db:"amount_cents" json:"amountCents"`
	Reason         string    `db:"reason" json:"reason"`
	Status         string    `db:"status" json:"status"`
	Response       string    `db:"response" json:"response,omitempty"`
	PreviousStatus string    `db:"previous_status" json:"-"`
	GatewayRefund  string    `db:"gateway_refund_id" json:"gatewayRefundId,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// RefundView is a refund listed in the back office.
type RefundView struct {
	Refund
	OrderNo   string `db:"order_no" json:"orderNo"`
	UserName  string `db:"user_name" json:"userName"`
	UserEmail string `db:"user_email" json:"userEmail"`
}
