package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventra/authserver/internal/store"
	"github.com/eventra/authserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, excludeID string) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, user types.User) (types.User, error)
	UpdateRole(ctx context.Context, id string, role types.Role) (types.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ProfileUpdate carries the optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	FullName  *string `json:"fullName"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatarUrl"`
}

// UserService encapsulates profile and role administration use-cases.
type UserService struct {
	repo     UserRepository
	hashCost int
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, hashCost: bcrypt.DefaultCost}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (types.User, error) {
	return s.get(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (types.User, error) {
	if update.Phone != nil && !isPhoneNumber(*update.Phone) {
		return types.User{}, validationError(msgInvalidPhone)
	}
	if update.FullName != nil && strings.TrimSpace(*update.FullName) == "" {
		return types.User{}, validationError("Full name cannot be empty")
	}

	user, err := s.get(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if update.FullName != nil {
		user.FullName = strings.TrimSpace(*update.FullName)
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*update.AvatarURL)
	}
	updated, err := s.repo.UpdateProfile(ctx, user)
	return updated, s.wrapWrite(err, "update profile")
}

// ListUsers returns every account except the calling admin's own.
func (s *UserService) ListUsers(ctx context.Context, adminID string) ([]types.User, error) {
	return s.repo.List(ctx, adminID)
}

func (s *UserService) ChangeRole(ctx context.Context, userID string, role types.Role) (types.User, error) {
	if !role.Valid() {
		return types.User{}, validationError("Role must be ADMIN or PARTICIPANT")
	}

	user, err := s.repo.UpdateRole(ctx, userID, role)
	return user, s.wrapWrite(err, "update role")
}

func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return validationError("This account does not have a password set")
	}
	if !passwordMatches(user.PasswordHash, oldPassword) {
		return authError("Old password is incorrect")
	}
	if isPasswordTooLong(newPassword) {
		return validationError("New " + msgLongPassword)
	}
	if !isStrongPassword(newPassword) {
		return validationError("New " + msgWeakPassword)
	}

	hashed, err := hashPassword(newPassword, s.hashCost)
	if err != nil {
		return err
	}
	return s.wrapWrite(s.repo.UpdatePassword(ctx, user.ID, hashed), "update password")
}

func (s *UserService) get(ctx context.Context, userID string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, errUserNotFound
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *UserService) wrapWrite(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return errUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
