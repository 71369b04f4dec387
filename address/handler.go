package address

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/auth"
	"petshop/database"
	"petshop/model"
	"petshop/respond"
)

// Input is a new address as submitted by the owner.
type Input struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Province  string `json:"province"`
	City      string `json:"city"`
	District  string `json:"district"`
	Detail    string `json:"detail"`
	IsDefault bool   `json:"isDefault"`
}

func (in *Input) normalize() error {
	for _, f := range []*string{&in.Name, &in.Phone, &in.Province, &in.City, &in.District, &in.Detail} {
		*f = strings.TrimSpace(*f)
		if *f == "" {
			return errors.New("All address fields are required")
		}
	}
	return nil
}

func ListAddressesHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addrs, err := database.ListAddresses(db, auth.UserFrom(r.Context()).ID)
		if err != nil {
			respond.Err(w, err, "Failed to fetch addresses")
			return
		}
		if addrs == nil {
			addrs = []model.Address{}
		}
		respond.JSON(w, http.StatusOK, addrs)
	}
}

// Create saves a new address. The first address of a user, or one sent with
// IsDefault, becomes the only default.
func Create(db *sqlx.DB, userID int64, in Input) (*model.Address, error) {
	if err := in.normalize(); err != nil {
		return nil, respond.BadRequest(err.Error())
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	count, err := database.CountAddresses(tx, userID)
	if err != nil {
		return nil, err
	}
	a := &model.Address{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      in.Name,
		Phone:     in.Phone,
		Province:  in.Province,
		City:      in.City,
		District:  in.District,
		Detail:    in.Detail,
		IsDefault: in.IsDefault || count == 0,
	}
	if a.IsDefault {
		if err := database.ClearDefaultAddress(tx, userID); err != nil {
			return nil, err
		}
	}
	if err := database.InsertAddress(tx, a); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func CreateAddressHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in Input
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		a, err := Create(db, auth.UserFrom(r.Context()).ID, in)
		if err != nil {
			respond.Err(w, err, "Failed to create address")
			return
		}
		respond.JSON(w, http.StatusCreated, a)
	}
}

// loadOwned returns the address {id} if it belongs to the user, writing the
// 404/401 response otherwise.
func loadOwned(w http.ResponseWriter, dbtx database.DBTX, user *model.User, id string) *model.Address {
	a, err := database.GetAddress(dbtx, id)
	if errors.Is(err, model.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "Address not found")
		return nil
	}
	if err != nil {
		respond.Err(w, err, "Failed to load address")
		return nil
	}
	if a.UserID != user.ID {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return nil
	}
	return a
}

// ErrNotOwned is returned for an address of another user.
var ErrNotOwned = errors.New("address belongs to another user")

// Delete removes an address of the user. When the default is deleted the
// most recent remaining address takes its place.
func Delete(db *sqlx.DB, user *model.User, id string) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	a, err := database.GetAddress(tx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("Address %w", model.ErrNotFound)
		}
		return err
	}
	if a.UserID != user.ID {
		return ErrNotOwned
	}
	if err := database.DeleteAddress(tx, a.ID); err != nil {
		return err
	}
	if a.IsDefault {
		next, err := database.LatestAddress(tx, user.ID)
		switch {
		case errors.Is(err, model.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := database.SetDefaultAddress(tx, user.ID, next.ID); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	zap.L().Info("address deleted", zap.String("addressId", a.ID), zap.Int64("userId", user.ID))
	return nil
}

// DeleteAddressHandler handles DELETE /api/addresses/{id}.
func DeleteAddressHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := Delete(db, auth.UserFrom(r.Context()), r.PathValue("id"))
		if errors.Is(err, ErrNotOwned) {
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err != nil {
			respond.Err(w, err, "Failed to delete address")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func SetDefaultAddressHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFrom(r.Context())
		tx, err := db.Beginx()
		if err != nil {
			respond.Err(w, err, "Failed to set default address")
			return
		}
		defer tx.Rollback()

		a := loadOwned(w, tx, user, r.PathValue("id"))
		if a == nil {
			return
		}
		if err := database.ClearDefaultAddress(tx, user.ID); err != nil {
			respond.Err(w, err, "Failed to set default address")
			return
		}
		if err := database.SetDefaultAddress(tx, user.ID, a.ID); err != nil {
			respond.Err(w, err, "Failed to set default address")
			return
		}
		if err := tx.Commit(); err != nil {
			respond.Err(w, err, "Failed to set default address")
			return
		}
		a.IsDefault = true
		respond.JSON(w, http.StatusOK, a)
	}
}
