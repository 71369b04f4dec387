package cart

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"petshop/auth"
	"petshop/config"
	"petshop/database"
	"petshop/mappers"
	"petshop/model"
	"petshop/respond"
)

type addRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  *int  `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// addedLine is the response to an add: the cart row with the full product.
type addedLine struct {
	model.CartItem
	Product mappers.ProductView `json:"product"`
}

// Load returns the priced cart of the user.
func Load(db *sqlx.DB, userID int64) (mappers.CartView, error) {
	lines, err := database.ListCart(db, userID)
	if err != nil {
		return mappers.CartView{}, err
	}
	return mappers.ToCartView(lines, config.GetConfig().Shop.ShippingRule()), nil
}

// Add puts qty of a product in the user's cart and returns the cart line and
// the product.
func Add(db *sqlx.DB, userID, productID int64, qty int) (*model.CartLine, *model.CatalogProduct, error) {
	if qty < 1 {
		return nil, nil, respond.BadRequest("Quantity must be a positive integer")
	}
	p, err := database.GetProduct(db, productID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil, fmt.Errorf("Product %w", model.ErrNotFound)
		}
		return nil, nil, err
	}
	id, err := database.AddToCart(db, userID, p.ID, qty)
	if err != nil {
		return nil, nil, err
	}
	line, err := database.GetCartLine(db, userID, id)
	if err != nil {
		return nil, nil, err
	}
	return line, p, nil
}

func GetCartHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := Load(db, auth.UserFrom(r.Context()).ID)
		if err != nil {
			respond.Err(w, err, "Failed to fetch cart")
			return
		}
		respond.JSON(w, http.StatusOK, view)
	}
}

// AddToCartHandler adds a product; adding a product already in the cart
// increments its quantity.
func AddToCartHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFrom(r.Context())
		var req addRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ProductID <= 0 || req.Quantity == nil {
			respond.Error(w, http.StatusBadRequest, "Invalid request body - productId and quantity are required")
			return
		}
		line, p, err := Add(db, user.ID, req.ProductID, *req.Quantity)
		if err != nil {
			respond.Err(w, err, "Failed to add to cart")
			return
		}
		respond.JSON(w, http.StatusOK, addedLine{CartItem: line.CartItem, Product: mappers.ToProductView(*p)})
	}
}

func UpdateCartItemHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFrom(r.Context())
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid cart item id")
			return
		}
		var req quantityRequest
		if err := respond.Decode(r, &req); err != nil || req.Quantity < 1 {
			respond.Error(w, http.StatusBadRequest, "Quantity must be a positive integer")
			return
		}
		if err := database.SetCartQuantity(db, user.ID, id, req.Quantity); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				respond.Error(w, http.StatusNotFound, "Cart item not found")
				return
			}
			respond.Err(w, err, "Failed to update cart")
			return
		}
		line, err := database.GetCartLine(db, user.ID, id)
		if err != nil {
			respond.Err(w, err, "Failed to update cart")
			return
		}
		respond.JSON(w, http.StatusOK, line)
	}
}

// DeleteCartItemHandler removes one line, named by {id} or by ?id=.
func DeleteCartItemHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFrom(r.Context())
		raw := r.PathValue("id")
		if raw == "" {
			raw = r.URL.Query().Get("id")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respond.Error(w, http.StatusBadRequest, "Invalid cart item id")
			return
		}
		if err := database.DeleteCartItem(db, user.ID, id); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				respond.Error(w, http.StatusNotFound, "Cart item not found")
				return
			}
			respond.Err(w, err, "Failed to remove cart item")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func ClearCartHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := database.ClearCart(db, auth.UserFrom(r.Context()).ID)
		if err != nil {
			respond.Err(w, err, "Failed to clear cart")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
	}
}
