package loader

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"petshop/auth"
	"petshop/database"
	"petshop/model"
	"petshop/money"
)

//go:embed seed/catalog.yaml
var defaultCatalog []byte

type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
	Users      []seedUser     `yaml:"users"`
}

type seedCategory struct {
	Slug        string        `yaml:"slug"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	ImageURL    string        `yaml:"image_url"`
	Products    []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	ImageURL    string `yaml:"image_url"`
	Featured    bool   `yaml:"featured"`
	Stock       int    `yaml:"stock"`
}

type seedUser struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// SeedResult counts what a seed run changed.
type SeedResult struct {
	Categories      int `json:"categories"`
	ProductsCreated int `json:"productsCreated"`
	ProductsUpdated int `json:"productsUpdated"`
	UsersCreated    int `json:"usersCreated"`
}

// DefaultCatalog returns the bundled demo catalog.
func DefaultCatalog() io.Reader {
	return bytes.NewReader(defaultCatalog)
}

// Seed loads a YAML catalog (categories with their products, plus users) in
// one transaction. Running it twice leaves a single copy of every row.
func Seed(db *sqlx.DB, r io.Reader) (res SeedResult, err error) {
	var sf seedFile
	if err := yaml.NewDecoder(r).Decode(&sf); err != nil {
		return res, fmt.Errorf("failed to decode seed file: %w", err)
	}

	// Hash outside the transaction; bcrypt is slow and sqlite holds a
	// write lock for the whole transaction.
	users := make([]model.User, 0, len(sf.Users))
	for _, su := range sf.Users {
		hash, err := auth.HashPassword(su.Password)
		if err != nil {
			return res, fmt.Errorf("failed to hash password for %s: %w", su.Email, err)
		}
		role := model.RoleUser
		if model.ValidRole(su.Role) {
			role = su.Role
		}
		users = append(users, model.User{Email: su.Email, Name: su.Name, Role: role, PasswordHash: hash})
	}

	tx, err := db.Beginx()
	if err != nil {
		return res, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, sc := range sf.Categories {
		catID, err := database.UpsertCategoryInTx(tx, model.Category{
			Name: sc.Name, Slug: sc.Slug, Description: sc.Description, ImageURL: sc.ImageURL,
		})
		if err != nil {
			return res, err
		}
		res.Categories++

		for _, sp := range sc.Products {
			price, err := money.Parse(sp.Price)
			if err != nil || price <= 0 {
				return res, fmt.Errorf("invalid price %q for product %s", sp.Price, sp.Name)
			}
			p := &model.Product{
				Name: sp.Name, Description: sp.Description, PriceCents: price,
				ImageURL: sp.ImageURL, Featured: sp.Featured, Stock: sp.Stock, CategoryID: catID,
			}
			created, err := database.UpsertProductInTx(tx, p)
			if err != nil {
				return res, err
			}
			if created {
				res.ProductsCreated++
			} else {
				res.ProductsUpdated++
			}
		}
	}

	for i := range users {
		created, err := database.EnsureUserInTx(tx, &users[i])
		if err != nil {
			return res, err
		}
		if created {
			res.UsersCreated++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit seed: %w", err)
	}
	zap.L().Info("seed loaded",
		zap.Int("categories", res.Categories),
		zap.Int("productsCreated", res.ProductsCreated),
		zap.Int("productsUpdated", res.ProductsUpdated),
		zap.Int("usersCreated", res.UsersCreated))
	return res, nil
}
