package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eventra/authserver/types"
)

// OTPRepository persists the outstanding passcode per (user, purpose).
type OTPRepository struct {
	db *sql.DB
}

func NewOTPRepository(db *sql.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Upsert stores otp, replacing any earlier code for the same user and
// purpose together with its consumed flag and attempt counter.
func (r *OTPRepository) Upsert(ctx context.Context, otp types.OneTimePasscode) error {
	const query = `
		INSERT INTO one_time_passcodes (user_id, purpose, code_hash, expires_at, consumed, attempts, created_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, $5)
		ON CONFLICT (user_id, purpose) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			consumed = FALSE,
			attempts = 0,
			created_at = EXCLUDED.created_at`
	if _, err := r.db.ExecContext(ctx, query, otp.UserID, otp.Purpose, otp.CodeHash, otp.ExpiresAt, otp.CreatedAt); err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}
	return nil
}

func (r *OTPRepository) Get(ctx context.Context, userID string, purpose types.OTPPurpose) (types.OneTimePasscode, error) {
	const query = `
		SELECT user_id, purpose, code_hash, expires_at, consumed, attempts, created_at
		FROM one_time_passcodes
		WHERE user_id = $1 AND purpose = $2`
	var otp types.OneTimePasscode
	err := r.db.QueryRowContext(ctx, query, userID, purpose).Scan(
		&otp.UserID,
		&otp.Purpose,
		&otp.CodeHash,
		&otp.ExpiresAt,
		&otp.Consumed,
		&otp.Attempts,
		&otp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OneTimePasscode{}, ErrNotFound
		}
		return types.OneTimePasscode{}, err
	}
	return otp, nil
}

// ReserveAttempt atomically counts one verification attempt against the
// outstanding code and returns the row as it stands afterwards. It returns
// ErrNotFound when there is no unconsumed code with attempts left.
func (r *OTPRepository) ReserveAttempt(ctx context.Context, userID string, purpose types.OTPPurpose, maxAttempts int) (types.OneTimePasscode, error) {
	const query = `
		UPDATE one_time_passcodes
		SET attempts = attempts + 1
		WHERE user_id = $1 AND purpose = $2 AND consumed = FALSE AND attempts < $3
		RETURNING user_id, purpose, code_hash, expires_at, consumed, attempts, created_at`
	var otp types.OneTimePasscode
	err := r.db.QueryRowContext(ctx, query, userID, purpose, maxAttempts).Scan(
		&otp.UserID,
		&otp.Purpose,
		&otp.CodeHash,
		&otp.ExpiresAt,
		&otp.Consumed,
		&otp.Attempts,
		&otp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OneTimePasscode{}, ErrNotFound
		}
		return types.OneTimePasscode{}, fmt.Errorf("reserve otp attempt: %w", err)
	}
	return otp, nil
}

// Consume marks the code used, provided the row still holds codeHash. It
// returns ErrNotFound when the code was already consumed or has since been
// replaced.
func (r *OTPRepository) Consume(ctx context.Context, userID string, purpose types.OTPPurpose, codeHash string) error {
	const query = `
		UPDATE one_time_passcodes
		SET consumed = TRUE
		WHERE user_id = $1 AND purpose = $2 AND consumed = FALSE AND code_hash = $3`
	result, err := r.db.ExecContext(ctx, query, userID, purpose, codeHash)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
