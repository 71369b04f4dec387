package mappers

import (
	"petshop/model"
	"petshop/money"
)

// ProductView adds the display price to a catalog product.
type ProductView struct {
	model.CatalogProduct
	Price string `json:"price"`
}

func ToProductView(p model.CatalogProduct) ProductView {
	return ProductView{CatalogProduct: p, Price: money.Format(p.PriceCents)}
}

func ToProductViews(products []model.CatalogProduct) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ToProductView(p))
	}
	return views
}

// CategoryView is a category page: the category and its products.
type CategoryView struct {
	model.Category
	Products []ProductView `json:"products"`
}

type CartLineView struct {
	model.CartLine
	LineTotalCents int64  `json:"lineTotalCents"`
	LineTotal      string `json:"lineTotal"`
}

// CartView is the cart with the totals the checkout page shows.
type CartView struct {
	Items            []CartLineView `json:"items"`
	Count            int            `json:"count"`
	SubtotalCents    int64          `json:"subtotalCents"`
	ShippingFeeCents int64          `json:"shippingFeeCents"`
	TotalCents       int64          `json:"totalCents"`
	Subtotal         string         `json:"subtotal"`
	ShippingFee      string         `json:"shippingFee"`
	Total            string         `json:"total"`
}

// ToCartView prices the cart. An empty cart has no shipping fee.
func ToCartView(lines []model.CartLine, rule money.ShippingRule) CartView {
	v := CartView{Items: make([]CartLineView, 0, len(lines))}
	for _, l := range lines {
		total := l.LineTotal()
		v.Items = append(v.Items, CartLineView{CartLine: l, LineTotalCents: total, LineTotal: money.Format(total)})
		v.Count += l.Quantity
		v.SubtotalCents += total
	}
	if len(lines) > 0 {
		v.ShippingFeeCents = rule.Fee(v.SubtotalCents)
	}
	v.TotalCents = v.SubtotalCents + v.ShippingFeeCents
	v.Subtotal = money.Format(v.SubtotalCents)
	v.ShippingFee = money.Format(v.ShippingFeeCents)
	v.Total = money.Format(v.TotalCents)
	return v
}

// OrderView adds display amounts and the actions the buyer may take next.
type OrderView struct {
	model.Order
	Total       string `json:"total"`
	ShippingFee string `json:"shippingFee"`
	CanPay      bool   `json:"canPay"`
	CanCancel   bool   `json:"canCancel"`
	CanConfirm  bool   `json:"canConfirm"`
	CanRefund   bool   `json:"canRefund"`
}

func ToOrderView(o model.Order) OrderView {
	pendingRefund := false
	for _, r := range o.Refunds {
		if r.Status == model.RefundPending {
			pendingRefund = true
		}
	}
	if o.Items == nil {
		o.Items = []model.OrderItem{}
	}
	return OrderView{
		Order:       o,
		Total:       money.Format(o.TotalCents),
		ShippingFee: money.Format(o.ShippingFeeCents),
		CanPay:      model.CanTransition(o.Status, model.StatusPaymentPending) || o.Status == model.StatusPaymentPending,
		CanCancel:   model.Unpaid(o.Status),
		CanConfirm:  o.Status == model.StatusShipped,
		CanRefund:   model.CanTransition(o.Status, model.StatusRefundPending) && !pendingRefund,
	}
}

func ToOrderViews(orders []model.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, ToOrderView(o))
	}
	return views
}
