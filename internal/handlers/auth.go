package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/eventra/authserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthService is the auth flow consumed by AuthHandler.
type AuthService interface {
	Signup(ctx context.Context, fullName, email, phone, password, role string) (services.SignupResult, error)
	SigninWithPassword(ctx context.Context, email, password string) (services.MessageResult, error)
	VerifyLoginOtp(ctx context.Context, email, otpCode string) (services.LoginResult, error)
	RequestPasswordReset(ctx context.Context, email string) (services.MessageResult, error)
	ResetPassword(ctx context.Context, email, otpCode, newPassword string) (services.MessageResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (services.RefreshResult, error)
	Logout(ctx context.Context, userID string) (string, error)
}

// AuthHandler exposes signup, two-step login, password reset, refresh and
// logout.
type AuthHandler struct {
	auth   AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// AuthRouter registers auth routes on the given router. Public routes go
// through limit; logout requires authMiddleware.
func AuthRouter(
	r chi.Router,
	auth AuthService,
	authMiddleware func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewAuthHandler(auth, logger)

	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/signup", handler.Signup)
		r.Post("/signin", handler.Signin)
		r.Post("/login/verify", handler.VerifyLogin)
		r.Post("/password/reset", handler.RequestPasswordReset)
		r.Post("/password/verify", handler.ResetPassword)
		r.Post("/token/refresh", handler.RefreshToken)
	})
	r.With(authMiddleware).Post("/logout", handler.Logout)
}

// Signup creates a participant (or admin) account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.FullName == "" || req.Email == "" || req.Phone == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Full Name, Email, Phone, Password are required")
		return
	}

	result, err := h.auth.Signup(r.Context(), req.FullName, req.Email, req.Phone, req.Password, req.Role)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Signin checks the password and triggers a login OTP.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.auth.SigninWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// VerifyLogin exchanges a login OTP for a token pair.
func (h *AuthHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}

	result, err := h.auth.VerifyLoginOtp(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	result, err := h.auth.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	switch {
	case req.Email == "":
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	case req.OTP == "":
		writeError(w, http.StatusBadRequest, "OTP is required")
		return
	case req.NewPassword == "":
		writeError(w, http.StatusBadRequest, "New password is required")
		return
	}

	result, err := h.auth.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	result, err := h.auth.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Logout revokes every refresh session of the authenticated user.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	fullName, err := h.auth.Logout(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fullName + " successfully logged out"})
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}
