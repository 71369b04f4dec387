package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"petshop/model"
)

const userColumns = `id, email, name, role, password_hash, created_at`

// GetUserByEmail matches e-mail addresses case-insensitively.
func GetUserByEmail(dbtx DBTX, email string) (*model.User, error) {
	var u model.User
	q := dbtx.Rebind(`SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER(?)`)
	if err := dbtx.Get(&u, q, strings.TrimSpace(email)); err != nil {
		return nil, lookupErr(err, "user", email)
	}
	return &u, nil
}

func GetUser(dbtx DBTX, id int64) (*model.User, error) {
	var u model.User
	q := dbtx.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := dbtx.Get(&u, q, id); err != nil {
		return nil, lookupErr(err, "user", id)
	}
	return &u, nil
}

// InsertUser creates a user. A taken e-mail address yields model.ErrConflict.
func InsertUser(dbtx DBTX, u *model.User) error {
	if _, err := GetUserByEmail(dbtx, u.Email); err == nil {
		return fmt.Errorf("email %s already registered: %w", u.Email, model.ErrConflict)
	} else if !isNotFound(err) {
		return err
	}

	const q = `
		INSERT INTO users (email, name, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`
	ts := now()
	if err := dbtx.Get(&u.ID, dbtx.Rebind(q), strings.TrimSpace(u.Email), u.Name, u.Role, u.PasswordHash, ts); err != nil {
		return fmt.Errorf("failed to insert user %s: %w", u.Email, err)
	}
	u.CreatedAt = ts
	return nil
}

// EnsureUserInTx creates the user unless the e-mail address already exists.
func EnsureUserInTx(tx *sqlx.Tx, u *model.User) (bool, error) {
	const q = `
		INSERT INTO users (email, name, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING`
	res, err := tx.Exec(tx.Rebind(q), u.Email, u.Name, u.Role, u.PasswordHash, now())
	if err != nil {
		return false, fmt.Errorf("failed to seed user %s: %w", u.Email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func ListUsers(dbtx DBTX) ([]model.User, error) {
	var users []model.User
	if err := dbtx.Select(&users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func UpdateUserRole(dbtx DBTX, id int64, role string) error {
	res, err := dbtx.Exec(dbtx.Rebind(`UPDATE users SET role = ? WHERE id = ?`), strings.ToUpper(role), id)
	if err != nil {
		return fmt.Errorf("failed to update role of user %d: %w", id, err)
	}
	return expectRow(res, "user", id)
}

// DeleteUser removes the user. Cart, addresses and orders cascade.
func DeleteUser(dbtx DBTX, id int64) error {
	res, err := dbtx.Exec(dbtx.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return expectRow(res, "user", id)
}

func CountUsers(ctx context.Context, dbtx DBTX) (int, error) {
	var n int
	if err := dbtx.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
