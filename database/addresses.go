package database

import (
	"fmt"

	"petshop/model"
)

const addressColumns = `id, user_id, name, phone, province, city, district, detail, is_default, created_at, updated_at`

// ListAddresses returns the default address first, then newest first.
func ListAddresses(dbtx DBTX, userID int64) ([]model.Address, error) {
	var addrs []model.Address
	q := dbtx.Rebind(`SELECT ` + addressColumns + ` FROM addresses WHERE user_id = ? ORDER BY is_default DESC, created_at DESC`)
	if err := dbtx.Select(&addrs, q, userID); err != nil {
		return nil, fmt.Errorf("failed to list addresses of user %d: %w", userID, err)
	}
	return addrs, nil
}

// GetAddress looks the address up by id alone; ownership is the caller's
// check.
func GetAddress(dbtx DBTX, id string) (*model.Address, error) {
	var a model.Address
	q := dbtx.Rebind(`SELECT ` + addressColumns + ` FROM addresses WHERE id = ?`)
	if err := dbtx.Get(&a, q, id); err != nil {
		return nil, lookupErr(err, "address", id)
	}
	return &a, nil
}

func CountAddresses(dbtx DBTX, userID int64) (int, error) {
	var n int
	if err := dbtx.Get(&n, dbtx.Rebind(`SELECT COUNT(*) FROM addresses WHERE user_id = ?`), userID); err != nil {
		return 0, fmt.Errorf("failed to count addresses of user %d: %w", userID, err)
	}
	return n, nil
}

// LatestAddress returns the most recently created address of the user.
func LatestAddress(dbtx DBTX, userID int64) (*model.Address, error) {
	var a model.Address
	q := dbtx.Rebind(`SELECT ` + addressColumns + ` FROM addresses WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`)
	if err := dbtx.Get(&a, q, userID); err != nil {
		return nil, lookupErr(err, "address of user", userID)
	}
	return &a, nil
}

func InsertAddress(dbtx DBTX, a *model.Address) error {
	const q = `
		INSERT INTO addresses (id, user_id, name, phone, province, city, district, detail, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	ts := now()
	_, err := dbtx.Exec(dbtx.Rebind(q),
		a.ID, a.UserID, a.Name, a.Phone, a.Province, a.City, a.District, a.Detail, a.IsDefault, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert address for user %d: %w", a.UserID, err)
	}
	a.CreatedAt, a.UpdatedAt = ts, ts
	return nil
}

func ClearDefaultAddress(dbtx DBTX, userID int64) error {
	q := dbtx.Rebind(`UPDATE addresses SET is_default = ?, updated_at = ? WHERE user_id = ? AND is_default = ?`)
	if _, err := dbtx.Exec(q, false, now(), userID, true); err != nil {
		return fmt.Errorf("failed to clear default address of user %d: %w", userID, err)
	}
	return nil
}

func SetDefaultAddress(dbtx DBTX, userID int64, id string) error {
	q := dbtx.Rebind(`UPDATE addresses SET is_default = ?, updated_at = ? WHERE id = ? AND user_id = ?`)
	res, err := dbtx.Exec(q, true, now(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to set default address %s: %w", id, err)
	}
	return expectRow(res, "address", id)
}

func DeleteAddress(dbtx DBTX, id string) error {
	res, err := dbtx.Exec(dbtx.Rebind(`DELETE FROM addresses WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete address %s: %w", id, err)
	}
	return expectRow(res, "address", id)
}
