package auth

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/config"
	"petshop/database"
	"petshop/model"
	"petshop/respond"
)

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toSessionUser(u *model.User) sessionUser {
	return sessionUser{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Login checks an email and password pair.
func Login(db *sqlx.DB, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, respond.BadRequest("Email and password are required")
	}
	u, err := database.GetUserByEmail(db, email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if u == nil || !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SetSessionCookie issues a token for u and stores it in the session cookie.
func SetSessionCookie(w http.ResponseWriter, u *model.User) error {
	cfg := config.GetConfig()
	token, expires, err := IssueToken(u, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Server.Production,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func LoginHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "Email and password are required")
			return
		}
		u, err := Login(db, req.Email, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if err != nil {
			respond.Err(w, err, "Login failed")
			return
		}

		if err := SetSessionCookie(w, u); err != nil {
			respond.Err(w, err, "Login failed")
			return
		}
		zap.L().Info("user logged in", zap.Int64("userId", u.ID))
		respond.JSON(w, http.StatusOK, map[string]any{"user": toSessionUser(u)})
	}
}

func RegisterHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.TrimSpace(req.Email)
		if req.Name == "" || req.Email == "" || req.Password == "" {
			respond.Error(w, http.StatusBadRequest, "Name, email and password are required")
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid email address")
			return
		}
		if err := validatePassword(req.Password); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		hash, err := HashPassword(req.Password)
		if err != nil {
			respond.Err(w, err, "Registration failed")
			return
		}
		u := &model.User{Email: req.Email, Name: req.Name, Role: model.RoleUser, PasswordHash: hash}
		if err := database.InsertUser(db, u); err != nil {
			if errors.Is(err, model.ErrConflict) {
				respond.Error(w, http.StatusConflict, "Email already registered")
				return
			}
			respond.Err(w, err, "Registration failed")
			return
		}

		if err := SetSessionCookie(w, u); err != nil {
			respond.Err(w, err, "Registration failed")
			return
		}
		zap.L().Info("user registered", zap.Int64("userId", u.ID))
		respond.JSON(w, http.StatusCreated, map[string]any{"user": toSessionUser(u)})
	}
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.GetConfig().Server.Production,
		SameSite: http.SameSiteStrictMode,
	})
}

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ClearSessionCookie(w)
		respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// MeHandler must sit behind RequireUser.
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]any{"user": toSessionUser(UserFrom(r.Context()))})
	}
}
