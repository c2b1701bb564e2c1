package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/eventra/authserver/internal/services"
	"github.com/eventra/authserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService is the profile and role administration API consumed by
// UserHandler.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (types.User, error)
	UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (types.User, error)
	ListUsers(ctx context.Context, adminID string) ([]types.User, error)
	ChangeRole(ctx context.Context, userID string, role types.Role) (types.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

func NewUserHandler(users UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// UserRouter registers profile and admin routes. Every route requires
// authMiddleware; listing and role changes also require ADMIN.
func UserRouter(r chi.Router, users UserService, authMiddleware func(http.Handler) http.Handler, logger *zap.Logger) {
	handler := NewUserHandler(users, logger)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/me", handler.GetMe)
		r.Patch("/me", handler.UpdateMe)
		r.Put("/me/password", handler.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(types.RoleAdmin))
			r.Get("/", handler.ListUsers)
			r.Patch("/{userID}/role", handler.ChangeRole)
		})
	})
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	user, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req services.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Old and new password are required")
		return
	}

	if err := h.users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

// ListUsers returns every account except the calling admin.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	adminID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	users, err := h.users.ListUsers(r.Context(), adminID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	targetID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if _, err := uuid.Parse(targetID); err != nil {
		writeError(w, http.StatusBadRequest, "User not found")
		return
	}

	var req ChangeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	user, err := h.users.ChangeRole(r.Context(), targetID, types.Role(strings.TrimSpace(req.Role)))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type ChangeRoleRequest struct {
	Role string `json:"role"`
}
