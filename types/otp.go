package types

import "time"

// OTPPurpose scopes a one-time passcode to a single flow.
type OTPPurpose string

const (
	OTPPurposeLogin         OTPPurpose = "LOGIN"
	OTPPurposePasswordReset OTPPurpose = "PASSWORD_RESET"
)

// OneTimePasscode is the outstanding code for one (user, purpose) pair.
// Issuing a new code overwrites the row.
type OneTimePasscode struct {
	UserID    string     `db:"user_id"`
	Purpose   OTPPurpose `db:"purpose"`
	CodeHash  string     `db:"code_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	Consumed  bool       `db:"consumed"`
	Attempts  int        `db:"attempts"`
	CreatedAt time.Time  `db:"created_at"`
}

// Expired reports whether the code is past its expiry at now.
func (o OneTimePasscode) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
