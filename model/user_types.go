package model

import (
	"strings"
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is a row of the users table. PasswordHash never leaves the server.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// IsAdmin reports whether the user may use the back office. Role names are
// compared case-insensitively because older rows were written in lower case.
func (u *User) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, RoleAdmin)
}

// ValidRole reports whether role names one of the known roles.
func ValidRole(role string) bool {
	return strings.EqualFold(role, RoleUser) || strings.EqualFold(role, RoleAdmin)
}

// Address is a saved shipping address. IDs are uuid strings.
type Address struct {
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Province  string    `db:"province" json:"province"`
	City      string    `db:"city" json:"city"`
	District  string    `db:"district" json:"district"`
	Detail    string    `db:"detail" json:"detail"`
	IsDefault bool      `db:"is_default" json:"isDefault"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Line renders the address the way it is printed on a parcel label.
func (a *Address) Line() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Province, a.City, a.District, a.Detail} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
