package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventra/authserver/internal/store"
	"github.com/eventra/authserver/internal/token"
	"github.com/eventra/authserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// refreshSessionTTL is the server-side lifetime of a login session. It is
// tracked in the database independently of the refresh JWT expiry.
const refreshSessionTTL = 7 * 24 * time.Hour

// RefreshTokenRepository defines persistence operations for refresh tokens.
type RefreshTokenRepository interface {
	Upsert(ctx context.Context, token types.RefreshToken) (types.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (types.RefreshToken, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// TokenIssuer signs and verifies JWTs.
type TokenIssuer interface {
	SignAccessToken(subject string, role types.Role) (string, error)
	SignRefreshToken(subject string, role types.Role) (string, error)
	VerifyRefreshToken(tokenString string) (*token.Claims, error)
}

// OTPManager issues and checks one-time passcodes.
type OTPManager interface {
	CreateAndSend(ctx context.Context, userID string, purpose types.OTPPurpose) error
	Verify(ctx context.Context, userID, code string, purpose types.OTPPurpose) error
}

type SignupResult struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type MessageResult struct {
	Message string `json:"message"`
}

type LoginResult struct {
	Message      string            `json:"message"`
	User         types.UserSummary `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type RefreshResult struct {
	AccessToken string `json:"accessToken"`
}

// AuthService implements signup, the two-step login, password reset,
// access-token refresh and logout. It keeps no state between calls; the
// OTP row and the refresh-token row carry the login progress.
type AuthService struct {
	users         UserRepository
	refreshTokens RefreshTokenRepository
	otps          OTPManager
	tokens        TokenIssuer
	logger        *zap.Logger
	hashCost      int
	now           func() time.Time
}

func NewAuthService(
	users UserRepository,
	refreshTokens RefreshTokenRepository,
	otps OTPManager,
	tokens TokenIssuer,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		otps:          otps,
		tokens:        tokens,
		logger:        logger,
		hashCost:      bcrypt.DefaultCost,
		now:           time.Now,
	}
}

// Signup registers a new account. The role is ADMIN only when exactly
// "ADMIN" is requested.
func (s *AuthService) Signup(ctx context.Context, fullName, email, phone, password, role string) (SignupResult, error) {
	if strings.TrimSpace(fullName) == "" {
		return SignupResult{}, validationError("Full name is required")
	}
	if !isEmail(email) {
		return SignupResult{}, validationError("Invalid email")
	}
	if !isPhoneNumber(phone) {
		return SignupResult{}, validationError(msgInvalidPhone)
	}
	if isPasswordTooLong(password) {
		return SignupResult{}, validationError(msgLongPassword)
	}
	if !isStrongPassword(password) {
		return SignupResult{}, validationError(msgWeakPassword)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return SignupResult{}, newError(ErrConflict, "Email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return SignupResult{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := hashPassword(password, s.hashCost)
	if err != nil {
		return SignupResult{}, err
	}

	userRole := types.RoleParticipant
	if role == string(types.RoleAdmin) {
		userRole = types.RoleAdmin
	}

	user, err := s.users.Create(ctx, types.User{
		FullName:     fullName,
		Email:        email,
		Phone:        phone,
		PasswordHash: hashed,
		Role:         userRole,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return SignupResult{}, newError(ErrConflict, "Email already registered")
		}
		return SignupResult{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return SignupResult{
		Message: "Signup successful. You can now log in.",
		UserID:  user.ID,
	}, nil
}

// SigninWithPassword checks credentials and sends a LOGIN OTP. No tokens
// are issued until VerifyLoginOtp succeeds.
func (s *AuthService) SigninWithPassword(ctx context.Context, email, password string) (MessageResult, error) {
	if !isEmail(email) {
		return MessageResult{}, validationError(msgInvalidEmailFmt)
	}
	if len(password) < minPasswordLength {
		return MessageResult{}, validationError("Password must be at least 8 characters long")
	}
	if isPasswordTooLong(password) {
		return MessageResult{}, validationError(msgLongPassword)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return MessageResult{}, err
	}
	if !passwordMatches(user.PasswordHash, password) {
		return MessageResult{}, authError("Invalid password")
	}

	if err := s.otps.CreateAndSend(ctx, user.ID, types.OTPPurposeLogin); err != nil {
		return MessageResult{}, err
	}
	return MessageResult{Message: "OTP sent to your email. Please verify to complete login."}, nil
}

// VerifyLoginOtp completes login: it consumes the LOGIN OTP, issues a token
// pair and replaces the user's stored session.
func (s *AuthService) VerifyLoginOtp(ctx context.Context, email, otpCode string) (LoginResult, error) {
	if !isEmail(email) {
		return LoginResult{}, validationError(msgInvalidEmailFmt)
	}
	if strings.TrimSpace(otpCode) == "" {
		return LoginResult{}, validationError("OTP is required")
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.otps.Verify(ctx, user.ID, otpCode, types.OTPPurposeLogin); err != nil {
		return LoginResult{}, err
	}

	accessToken, err := s.tokens.SignAccessToken(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, err
	}
	refreshToken, err := s.tokens.SignRefreshToken(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, err
	}

	_, err = s.refreshTokens.Upsert(ctx, types.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: s.now().Add(refreshSessionTTL),
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("store refresh token: %w", err)
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return LoginResult{
		Message:      "Login successful",
		User:         user.Summary(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// RequestPasswordReset sends a PASSWORD_RESET OTP to a registered email.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (MessageResult, error) {
	if !isEmail(email) {
		return MessageResult{}, validationError(msgInvalidEmailFmt)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return MessageResult{}, err
	}
	if err := s.otps.CreateAndSend(ctx, user.ID, types.OTPPurposePasswordReset); err != nil {
		return MessageResult{}, err
	}
	return MessageResult{Message: "Password reset OTP sent to email"}, nil
}

// ResetPassword replaces the password after a PASSWORD_RESET OTP check.
// It does not log the user in.
func (s *AuthService) ResetPassword(ctx context.Context, email, otpCode, newPassword string) (MessageResult, error) {
	if !isEmail(email) {
		return MessageResult{}, validationError(msgInvalidEmailFmt)
	}
	if isPasswordTooLong(newPassword) {
		return MessageResult{}, validationError(msgLongPassword)
	}
	if !isStrongPassword(newPassword) {
		return MessageResult{}, validationError(msgWeakPassword)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return MessageResult{}, err
	}
	if err := s.otps.Verify(ctx, user.ID, otpCode, types.OTPPurposePasswordReset); err != nil {
		return MessageResult{}, err
	}

	hashed, err := hashPassword(newPassword, s.hashCost)
	if err != nil {
		return MessageResult{}, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MessageResult{}, errUserNotFound
		}
		return MessageResult{}, fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return MessageResult{Message: "Password reset successful"}, nil
}

// RefreshAccessToken exchanges a stored refresh token for a new access
// token. The database record and the signature are checked independently;
// the refresh token itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return RefreshResult{}, validationError("Refresh token is required")
	}

	record, err := s.refreshTokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RefreshResult{}, authError("Invalid refresh token")
		}
		return RefreshResult{}, fmt.Errorf("load refresh token: %w", err)
	}
	if !record.Usable(s.now()) {
		return RefreshResult{}, authError("Refresh token expired or revoked")
	}

	if _, err := s.tokens.VerifyRefreshToken(refreshToken); err != nil {
		return RefreshResult{}, authError("Invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RefreshResult{}, authError("Invalid refresh token")
		}
		return RefreshResult{}, fmt.Errorf("load user: %w", err)
	}

	accessToken, err := s.tokens.SignAccessToken(user.ID, user.Role)
	if err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{AccessToken: accessToken}, nil
}

// Logout drops every stored session of the user and returns the user's
// full name.
func (s *AuthService) Logout(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", errUserNotFound
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	removed, err := s.refreshTokens.DeleteByUserID(ctx, user.ID)
	if err != nil {
		return "", err
	}

	s.logger.Info("user logged out", zap.String("user_id", user.ID), zap.Int64("sessions_removed", removed))
	return user.FullName, nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (types.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, errUserNotFound
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
