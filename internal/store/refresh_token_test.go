package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eventra/authserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	now := time.Now()
	expires := now.Add(7 * 24 * time.Hour)
	mock.ExpectQuery(`(?s)INSERT INTO refresh_tokens .* ON CONFLICT \(user_id\) DO UPDATE.*revoked = FALSE.*RETURNING id, created_at, updated_at`).
		WithArgs(sqlmock.AnyArg(), "u-1", "tok-1", expires, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("rt-existing", now, now))

	rt, err := repo.Upsert(context.Background(), types.RefreshToken{UserID: "u-1", Token: "tok-1", ExpiresAt: expires})
	require.NoError(t, err)
	assert.Equal(t, "rt-existing", rt.ID)
	assert.False(t, rt.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .* FROM refresh_tokens\s+WHERE token = \$1`).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "revoked", "created_at", "updated_at"}).
			AddRow("rt-1", "u-1", "tok-1", now.Add(time.Hour), true, now, now))

	rt, err := repo.GetByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.True(t, rt.Revoked)
	assert.False(t, rt.Usable(now))
}

func TestRefreshTokenRepository_GetByToken_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	mock.ExpectQuery(`FROM refresh_tokens`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByToken(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshTokenRepository_DeleteByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE user_id = \$1`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteByUserID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRefreshTokenRepository_DeleteByUserID_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	mock.ExpectExec(`DELETE FROM refresh_tokens`).WillReturnError(errors.New("db down"))

	_, err := repo.DeleteByUserID(context.Background(), "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
