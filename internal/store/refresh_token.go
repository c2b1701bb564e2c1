package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventra/authserver/types"
	"github.com/google/uuid"
)

// RefreshTokenRepository persists the single session token of each user.
type RefreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Upsert creates or replaces the user's refresh token and clears revocation.
func (r *RefreshTokenRepository) Upsert(ctx context.Context, token types.RefreshToken) (types.RefreshToken, error) {
	now := time.Now().UTC()
	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at,
			revoked = FALSE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, token.ID, token.UserID, token.Token, token.ExpiresAt, now).
		Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.RefreshToken{}, ErrConflict
		}
		return types.RefreshToken{}, fmt.Errorf("upsert refresh token: %w", err)
	}
	token.Revoked = false
	return token, nil
}

// GetByToken finds a record by its exact token value.
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (types.RefreshToken, error) {
	const query = `
		SELECT id, user_id, token, expires_at, revoked, created_at, updated_at
		FROM refresh_tokens
		WHERE token = $1`
	var rt types.RefreshToken
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Token,
		&rt.ExpiresAt,
		&rt.Revoked,
		&rt.CreatedAt,
		&rt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RefreshToken{}, ErrNotFound
		}
		return types.RefreshToken{}, err
	}
	return rt, nil
}

// DeleteByUserID removes every refresh token of the user and reports how
// many rows were deleted. Deleting nothing is not an error.
func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens: %w", err)
	}
	return result.RowsAffected()
}
