package loader

import (
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/database"
	"petshop/model"
	"petshop/parsers"
	"petshop/respond"
)

// ImportResult reports a product CSV import. Skipped rows do not abort the
// import.
type ImportResult struct {
	Created int                `json:"created"`
	Updated int                `json:"updated"`
	Skipped []parsers.RowError `json:"skipped"`
}

// ImportProductsCSV upserts the products of a CSV sheet by name in a single
// transaction. Rows naming an unknown category are skipped.
func ImportProductsCSV(db *sqlx.DB, r io.Reader, encoding string) (ImportResult, error) {
	res := ImportResult{Skipped: []parsers.RowError{}}

	decoded, err := parsers.Decode(r, encoding)
	if err != nil {
		return res, respond.BadRequest(err.Error())
	}
	records, rowErrs, err := parsers.ParseProductCSV(decoded)
	if err != nil {
		return res, respond.BadRequest(err.Error())
	}
	res.Skipped = append(res.Skipped, rowErrs...)

	cats, err := database.ListCategories(db)
	if err != nil {
		return res, err
	}
	catIDs := make(map[string]int64, len(cats))
	for _, c := range cats {
		catIDs[c.Slug] = c.ID
	}

	tx, err := db.Beginx()
	if err != nil {
		return res, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		catID, ok := catIDs[rec.CategorySlug]
		if !ok {
			res.Skipped = append(res.Skipped, parsers.RowError{Line: rec.Line, Message: fmt.Sprintf("unknown category %q", rec.CategorySlug)})
			continue
		}
		p := &model.Product{
			Name: rec.Name, Description: rec.Description, PriceCents: rec.PriceCents,
			ImageURL: rec.ImageURL, Featured: rec.Featured, Stock: rec.Stock, CategoryID: catID,
		}
		created, err := database.UpsertProductInTx(tx, p)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", rec.Line, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit import: %w", err)
	}
	zap.L().Info("product import finished",
		zap.Int("created", res.Created), zap.Int("updated", res.Updated), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}
