package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/config"
	"petshop/database"
	"petshop/model"
	"petshop/respond"
)

type ctxKey struct{}

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the authenticated user or nil.
func UserFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(ctxKey{}).(*model.User)
	return u
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// CurrentUser resolves the session of r. It returns nil, nil for anonymous
// requests and for tokens whose user no longer exists.
func CurrentUser(db *sqlx.DB, r *http.Request) (*model.User, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, nil
	}
	claims, err := ParseToken(token, config.GetConfig().Auth.JWTSecret)
	if err != nil {
		return nil, nil
	}
	u, err := database.GetUser(db, claims.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// Authenticate attaches the session user, if any, to the request context.
// Anonymous requests pass through.
func Authenticate(db *sqlx.DB, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) == nil {
			u, err := CurrentUser(db, r)
			if err != nil {
				zap.L().Error("failed to resolve session", zap.Error(err))
			}
			if u != nil {
				r = r.WithContext(WithUser(r.Context(), u))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(db *sqlx.DB, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := UserFrom(r.Context())
		if u == nil {
			var err error
			if u, err = CurrentUser(db, r); err != nil {
				respond.Err(w, err, "Failed to resolve session")
				return
			}
		}
		if u == nil {
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), u)))
	}
}

// RequireAdmin is RequireUser plus a 403 for non-admins.
func RequireAdmin(db *sqlx.DB, next http.HandlerFunc) http.HandlerFunc {
	return RequireUser(db, func(w http.ResponseWriter, r *http.Request) {
		if !UserFrom(r.Context()).IsAdmin() {
			respond.Error(w, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r)
	})
}
