package model

const (
	StatusPending        = "pending"
	StatusPaymentPending = "payment_pending"
	StatusPaymentFailed  = "payment_failed"
	StatusPaid           = "paid"
	StatusShipped        = "shipped"
	StatusCompleted      = "completed"
	StatusRefundPending  = "refund_pending"
	StatusRefunded       = "refunded"
	StatusCancelled      = "cancelled"
)

var transitions = map[string][]string{
	StatusPending:        {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending: {StatusPaid, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:  {StatusPaymentPending, StatusPaid, StatusCancelled},
	StatusPaid:           {StatusShipped, StatusRefundPending},
	StatusShipped:        {StatusCompleted, StatusRefundPending},
	StatusRefundPending:  {StatusRefunded, StatusPaid, StatusShipped},
}

// CanTransition reports whether an order may move from one status to another.
// Completed, refunded and cancelled orders are terminal.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []string{
	StatusPending, StatusPaymentPending, StatusPaymentFailed, StatusPaid,
	StatusShipped, StatusCompleted, StatusRefundPending, StatusRefunded, StatusCancelled,
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// RevenueStatuses are the statuses of orders whose money has been captured
// and not given back.
var RevenueStatuses = []string{StatusPaid, StatusShipped, StatusCompleted, StatusRefundPending}

// Unpaid reports whether the order has not been charged yet.
func Unpaid(status string) bool {
	return status == StatusPending || status == StatusPaymentPending || status == StatusPaymentFailed
}

const (
	PaymentCard   = "card"
	PaymentAlipay = "alipay"
	PaymentWechat = "wechat_pay"
)

// PaymentMethods lists the accepted gateway methods.
var PaymentMethods = []string{PaymentCard, PaymentAlipay, PaymentWechat}

// ValidPaymentMethod reports whether m is one of the accepted gateway methods.
func ValidPaymentMethod(m string) bool {
	return m == PaymentCard || m == PaymentAlipay || m == PaymentWechat
}
