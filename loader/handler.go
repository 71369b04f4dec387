package loader

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"petshop/respond"
)

const maxUploadBytes = 10 << 20

// ImportProductsHandler accepts a multipart upload (field "file") and an
// optional "encoding" form value (utf-8 or gb18030).
func ImportProductsHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid upload")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "CSV file is required")
			return
		}
		defer file.Close()

		res, err := ImportProductsCSV(db, file, r.FormValue("encoding"))
		if err != nil {
			respond.Err(w, err, "Failed to import products")
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

// SeedHandler reloads the bundled demo catalog.
func SeedHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := Seed(db, DefaultCatalog())
		if err != nil {
			respond.Err(w, err, "Failed to load seed data")
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}
