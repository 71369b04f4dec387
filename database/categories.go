package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"petshop/model"
)

const categoryColumns = `id, name, slug, description, image_url`

func ListCategories(dbtx DBTX) ([]model.Category, error) {
	var cats []model.Category
	q := `SELECT ` + categoryColumns + ` FROM categories ORDER BY name`
	if err := dbtx.Select(&cats, q); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return cats, nil
}

func GetCategoryBySlug(dbtx DBTX, slug string) (*model.Category, error) {
	var c model.Category
	q := dbtx.Rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE slug = ?`)
	if err := dbtx.Get(&c, q, slug); err != nil {
		return nil, lookupErr(err, "category", slug)
	}
	return &c, nil
}

func GetCategory(dbtx DBTX, id int64) (*model.Category, error) {
	var c model.Category
	q := dbtx.Rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`)
	if err := dbtx.Get(&c, q, id); err != nil {
		return nil, lookupErr(err, "category", id)
	}
	return &c, nil
}

// UpsertCategoryInTx inserts or refreshes a category keyed by slug and
// returns its id.
func UpsertCategoryInTx(tx *sqlx.Tx, c model.Category) (int64, error) {
	const q = `
		INSERT INTO categories (name, slug, description, image_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			image_url = excluded.image_url
		RETURNING id`
	var id int64
	if err := tx.Get(&id, tx.Rebind(q), c.Name, c.Slug, c.Description, c.ImageURL); err != nil {
		return 0, fmt.Errorf("failed to upsert category %s: %w", c.Slug, err)
	}
	return id, nil
}
