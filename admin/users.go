package admin

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"petshop/auth"
	"petshop/database"
	"petshop/model"
	"petshop/respond"
)

func ListUsersHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := database.ListUsers(db)
		if err != nil {
			respond.Err(w, err, "Failed to fetch users")
			return
		}
		if users == nil {
			users = []model.User{}
		}
		respond.JSON(w, http.StatusOK, users)
	}
}

func UpdateUserRoleHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid user ID")
			return
		}
		var req struct {
			Role string `json:"role"`
		}
		if err := respond.Decode(r, &req); err != nil || !model.ValidRole(req.Role) {
			respond.Error(w, http.StatusBadRequest, "Invalid role")
			return
		}
		if err := database.UpdateUserRole(db, id, req.Role); err != nil {
			respond.Err(w, err, "Failed to update user")
			return
		}
		u, err := database.GetUser(db, id)
		if err != nil {
			respond.Err(w, err, "Failed to update user")
			return
		}
		zap.L().Info("user role changed", zap.Int64("userId", id), zap.String("role", u.Role),
			zap.Int64("by", auth.UserFrom(r.Context()).ID))
		respond.JSON(w, http.StatusOK, u)
	}
}

// DeleteUserHandler removes a user with everything they own. Admins cannot
// delete themselves.
func DeleteUserHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid user ID")
			return
		}
		me := auth.UserFrom(r.Context())
		if me.ID == id {
			respond.Error(w, http.StatusBadRequest, "Cannot delete yourself")
			return
		}
		if err := database.DeleteUser(db, id); err != nil {
			respond.Err(w, err, "Failed to delete user")
			return
		}
		zap.L().Info("user deleted", zap.Int64("userId", id), zap.Int64("by", me.ID))
		respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
