package mappers

import "petshop/model"

// MapProductToOrderItem snapshots the catalog name, image and price of p
// onto an order line.
func MapProductToOrderItem(p *model.Product, qty int) model.OrderItem {
	pid := p.ID
	return model.OrderItem{
		ProductID:   &pid,
		ProductName: p.Name,
		ImageURL:    p.ImageURL,
		Quantity:    qty,
		PriceCents:  p.PriceCents,
	}
}

// Subtotal sums price times quantity over the items.
func Subtotal(items []model.OrderItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.PriceCents * int64(it.Quantity)
	}
	return sum
}
