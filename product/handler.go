package product

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/database"
	"petshop/mappers"
	"petshop/model"
	"petshop/money"
	"petshop/respond"
)

// productInput is the admin create/update payload. Nil fields are left
// unchanged on update. Price may be a JSON number or a decimal string.
type productInput struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Price       json.RawMessage `json:"price"`
	ImageURL    *string         `json:"imageUrl"`
	Featured    *bool           `json:"featured"`
	Stock       *int            `json:"stock"`
	CategoryID  *int64          `json:"categoryId"`
}

// apply merges the input into p and validates the result.
func (in productInput) apply(dbtx database.DBTX, p *model.Product) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if len(in.Price) > 0 {
		price, err := money.ParsePositive(in.Price)
		if err != nil {
			return errors.New("Price must be a positive amount")
		}
		p.PriceCents = price
	}
	if in.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return errors.New("Stock must not be negative")
		}
		p.Stock = *in.Stock
	}
	if in.CategoryID != nil {
		if _, err := database.GetCategory(dbtx, *in.CategoryID); err != nil {
			return errors.New("Category not found")
		}
		p.CategoryID = *in.CategoryID
	}

	if p.Name == "" {
		return errors.New("Name is required")
	}
	if p.PriceCents <= 0 {
		return errors.New("Price is required")
	}
	if p.CategoryID == 0 {
		return errors.New("Category is required")
	}
	return nil
}

// FilterFromQuery reads the catalog filters shared by the API and the pages.
func FilterFromQuery(r *http.Request) database.ProductFilter {
	q := r.URL.Query()
	f := database.ProductFilter{
		CategorySlug: q.Get("category"),
		Query:        q.Get("q"),
	}
	if v := q.Get("featured"); v != "" {
		featured := v == "true" || v == "1"
		f.Featured = &featured
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	return f
}

// ListProductsHandler serves GET /api/products?category=&featured=&q=.
func ListProductsHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := database.ListProducts(db, FilterFromQuery(r))
		if err != nil {
			respond.Err(w, err, "Failed to fetch products")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToProductViews(products))
	}
}

func GetProductHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid product id")
			return
		}
		p, err := database.GetProduct(db, id)
		if errors.Is(err, model.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Product not found")
			return
		}
		if err != nil {
			respond.Err(w, err, "Failed to fetch product")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToProductView(*p))
	}
}

func ListCategoriesHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := database.ListCategories(db)
		if err != nil {
			respond.Err(w, err, "Failed to fetch categories")
			return
		}
		if cats == nil {
			cats = []model.Category{}
		}
		respond.JSON(w, http.StatusOK, cats)
	}
}

// GetCategoryHandler returns the category named by {slug} with its products.
func GetCategoryHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := LoadCategory(db, r.PathValue("slug"))
		if errors.Is(err, model.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Category not found")
			return
		}
		if err != nil {
			respond.Err(w, err, "Failed to fetch category")
			return
		}
		respond.JSON(w, http.StatusOK, view)
	}
}

// LoadCategory builds the category page data.
func LoadCategory(db *sqlx.DB, slug string) (*mappers.CategoryView, error) {
	cat, err := database.GetCategoryBySlug(db, slug)
	if err != nil {
		return nil, err
	}
	products, err := database.ListProducts(db, database.ProductFilter{CategoryID: cat.ID})
	if err != nil {
		return nil, err
	}
	return &mappers.CategoryView{Category: *cat, Products: mappers.ToProductViews(products)}, nil
}

func CreateProductHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in productInput
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		p := &model.Product{}
		if err := in.apply(db, p); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := database.InsertProduct(db, p); err != nil {
			respond.Err(w, err, "Failed to create product")
			return
		}
		zap.L().Info("product created", zap.Int64("productId", p.ID), zap.String("name", p.Name))

		created, err := database.GetProduct(db, p.ID)
		if err != nil {
			respond.Err(w, err, "Failed to create product")
			return
		}
		respond.JSON(w, http.StatusCreated, mappers.ToProductView(*created))
	}
}

// UpdateProductHandler applies a partial update to {id}.
func UpdateProductHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid product id")
			return
		}
		var in productInput
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		current, err := database.GetProduct(db, id)
		if errors.Is(err, model.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Product not found")
			return
		}
		if err != nil {
			respond.Err(w, err, "Failed to update product")
			return
		}
		p := current.Product
		if err := in.apply(db, &p); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := database.UpdateProduct(db, &p); err != nil {
			respond.Err(w, err, "Failed to update product")
			return
		}

		updated, err := database.GetProduct(db, id)
		if err != nil {
			respond.Err(w, err, "Failed to update product")
			return
		}
		respond.JSON(w, http.StatusOK, mappers.ToProductView(*updated))
	}
}

// DeleteProductHandler removes {id}. Past orders keep their item snapshots.
func DeleteProductHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid product id")
			return
		}
		if err := database.DeleteProduct(db, id); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				respond.Error(w, http.StatusNotFound, "Product not found")
				return
			}
			respond.Err(w, err, "Failed to delete product")
			return
		}
		zap.L().Info("product deleted", zap.Int64("productId", id))
		respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
