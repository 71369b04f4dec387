// Package testutil builds migrated throwaway databases and fixtures for
// handler tests.
package testutil

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"petshop/auth"
	"petshop/config"
	"petshop/database"
	"petshop/loader"
	"petshop/model"
)

const JWTSecret = "test-secret"

var seq atomic.Int64

// Config returns the configuration used by tests: fake gateway, default shop
// settings and a fixed JWT secret.
func Config() config.Config {
	c := config.Default()
	c.Auth.JWTSecret = JWTSecret
	c.Auth.TokenTTL = time.Hour
	c.Payment.Provider = "fake"
	c.Payment.WebhookSecret = "whsec_test"
	c.Shop = config.ShopConfig{
		FreeShippingThresholdCents: 10000,
		ShippingFeeCents:           1000,
		DefaultLang:                "en",
		AnalyticsDays:              30,
	}
	return c
}

// NewDB returns a migrated SQLite database in a temp dir and installs the
// test configuration.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	config.SetConfig(Config())
	config.SetConfigPath(filepath.Join(t.TempDir(), "petshop.yaml"))

	dsn := "file:" + filepath.Join(t.TempDir(), "petshop.db") + "?_foreign_keys=on&_busy_timeout=5000"
	require.NoError(t, loader.Migrate(database.DriverSQLite, dsn))

	db, err := database.Open(database.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// CreateUser inserts a user whose password is "password".
func CreateUser(t testing.TB, db *sqlx.DB, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	n := seq.Add(1)
	u := &model.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		Name:         fmt.Sprintf("User %d", n),
		Role:         role,
		PasswordHash: string(hash),
	}
	require.NoError(t, database.InsertUser(db, u))
	return u
}

func CreateCategory(t testing.TB, db *sqlx.DB, slug string) *model.Category {
	t.Helper()
	tx, err := db.Beginx()
	require.NoError(t, err)
	id, err := database.UpsertCategoryInTx(tx, model.Category{Name: slug, Slug: slug})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return &model.Category{ID: id, Name: slug, Slug: slug}
}

// CreateProduct inserts a product in the given category.
func CreateProduct(t testing.TB, db *sqlx.DB, categoryID, priceCents int64, stock int) *model.Product {
	t.Helper()
	n := seq.Add(1)
	p := &model.Product{
		Name:       fmt.Sprintf("Product %d", n),
		PriceCents: priceCents,
		Stock:      stock,
		CategoryID: categoryID,
	}
	require.NoError(t, database.InsertProduct(db, p))
	return p
}

// AuthCookie returns a session cookie for u.
func AuthCookie(t testing.TB, u *model.User) *http.Cookie {
	t.Helper()
	token, _, err := auth.IssueToken(u, JWTSecret, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}
