package types

import "time"

// Role is the authorization tier of an account.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleParticipant Role = "PARTICIPANT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleParticipant
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// FullName is the user's display name.
	FullName string `json:"fullName" db:"full_name"`

	// Email is the unique login address. Matching is exact.
	Email string `json:"email" db:"email"`

	// Phone is a Pakistani mobile number (+92XXXXXXXXXX or 03XXXXXXXXX).
	Phone string `json:"phone" db:"phone"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// Empty means the account cannot sign in with a password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// AvatarURL points at the user's profile picture, if any.
	AvatarURL string `json:"avatarUrl,omitempty" db:"avatar_url"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasPassword reports whether password sign-in is possible for the user.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// UserSummary is the public subset of a user returned after login.
type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

// Summary returns the login summary for u.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}
