package model

import "time"

type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Slug        string `db:"slug" json:"slug"`
	Description string `db:"description" json:"description"`
	ImageURL    string `db:"image_url" json:"imageUrl"`
}

// Product prices are integer minor units (cents / fen).
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	PriceCents  int64     `db:"price_cents" json:"priceCents"`
	ImageURL    string    `db:"image_url" json:"imageUrl"`
	Featured    bool      `db:"featured" json:"featured"`
	Stock       int       `db:"stock" json:"stock"`
	CategoryID  int64     `db:"category_id" json:"categoryId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	ProductID int64     `db:"product_id" json:"productId"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// CartLine is a cart row joined with its product.
type CartLine struct {
	CartItem
	Product Product `db:"product" json:"product"`
}

// LineTotal is price times quantity in minor units.
func (l CartLine) LineTotal() int64 {
	return l.Product.PriceCents * int64(l.Quantity)
}

// CatalogProduct is a product joined with its category.
type CatalogProduct struct {
	Product
	Category Category `db:"category" json:"category"`
}
