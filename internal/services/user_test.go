package services

import (
	"context"
	"strings"
	"testing"

	"github.com/eventra/authserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserService_GetProfile(t *testing.T) {
	env := newTestEnv(t)
	userID := env.signupUser(t, "ali@example.com")

	user, err := env.user.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "ali@example.com", user.Email)

	_, err = env.user.GetProfile(context.Background(), "missing")
	requireDomainError(t, err, ErrNotFound, "User not found")
}

func TestUserService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.signupUser(t, "ali@example.com")

	_, err := env.user.UpdateProfile(ctx, userID, ProfileUpdate{Phone: strPtr("555")})
	requireDomainError(t, err, ErrValidation, msgInvalidPhone)

	_, err = env.user.UpdateProfile(ctx, userID, ProfileUpdate{FullName: strPtr("  ")})
	requireDomainError(t, err, ErrValidation, "Full name cannot be empty")

	user, err := env.user.UpdateProfile(ctx, userID, ProfileUpdate{
		FullName:  strPtr(" Ali R. Khan "),
		AvatarURL: strPtr("https://cdn.example/ali.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ali R. Khan", user.FullName)
	assert.Equal(t, "03001234567", user.Phone)
	assert.Equal(t, "https://cdn.example/ali.png", user.AvatarURL)

	_, err = env.user.UpdateProfile(ctx, "missing", ProfileUpdate{})
	requireDomainError(t, err, ErrNotFound, "User not found")
}

func TestUserService_ListUsersExcludesCaller(t *testing.T) {
	env := newTestEnv(t)
	adminID := env.signupUser(t, "admin@example.com")
	env.signupUser(t, "a@example.com")
	env.signupUser(t, "b@example.com")

	users, err := env.user.ListUsers(context.Background(), adminID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, adminID, u.ID)
	}
}

func TestUserService_ChangeRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.signupUser(t, "ali@example.com")

	_, err := env.user.ChangeRole(ctx, userID, types.Role("OWNER"))
	requireDomainError(t, err, ErrValidation, "Role must be ADMIN or PARTICIPANT")

	user, err := env.user.ChangeRole(ctx, userID, types.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, user.Role)

	_, err = env.user.ChangeRole(ctx, "missing", types.RoleAdmin)
	requireDomainError(t, err, ErrNotFound, "User not found")
}

func TestUserService_WritesTouchOnlyTheirColumns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.signupUser(t, "ali@example.com")

	require.NoError(t, env.user.ChangePassword(ctx, userID, "secret123", "newpass456"))
	_, err := env.user.ChangeRole(ctx, userID, types.RoleAdmin)
	require.NoError(t, err)
	_, err = env.user.UpdateProfile(ctx, userID, ProfileUpdate{FullName: strPtr("Ali K")})
	require.NoError(t, err)

	user, err := env.users.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, user.Role)
	assert.Equal(t, "Ali K", user.FullName)
	assert.True(t, passwordMatches(user.PasswordHash, "newpass456"))
}

func TestUserService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.signupUser(t, "ali@example.com")

	err := env.user.ChangePassword(ctx, userID, "wrong1234", "newpass456")
	requireDomainError(t, err, ErrAuth, "Old password is incorrect")

	err = env.user.ChangePassword(ctx, userID, "secret123", "short")
	requireDomainError(t, err, ErrValidation, "New "+msgWeakPassword)

	err = env.user.ChangePassword(ctx, userID, "secret123", strings.Repeat("a", 72)+"1")
	requireDomainError(t, err, ErrValidation, "New "+msgLongPassword)

	require.NoError(t, env.user.ChangePassword(ctx, userID, "secret123", "newpass456"))
	user, err := env.users.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, passwordMatches(user.PasswordHash, "newpass456"))
}

func TestUserService_ChangePassword_NoPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, err := env.users.Create(ctx, types.User{FullName: "OAuth", Email: "oauth@example.com", Role: types.RoleParticipant})
	require.NoError(t, err)

	err = env.user.ChangePassword(ctx, user.ID, "anything1", "newpass456")
	requireDomainError(t, err, ErrValidation, "This account does not have a password set")
}
