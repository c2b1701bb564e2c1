package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eventra/authserver/config"
	"github.com/eventra/authserver/types"
)

func newTestManager() *Manager {
	return NewManager(config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "test",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
}

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	tok, err := m.SignAccessToken("user-1", types.RoleAdmin)
	if err != nil {
		t.Fatalf("SignAccessToken error: %v", err)
	}

	claims, err := m.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != types.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshToken_UniquePerCall(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	a, err := m.SignRefreshToken("user-1", types.RoleParticipant)
	if err != nil {
		t.Fatalf("SignRefreshToken error: %v", err)
	}
	b, err := m.SignRefreshToken("user-1", types.RoleParticipant)
	if err != nil {
		t.Fatalf("SignRefreshToken error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct refresh tokens")
	}
	if _, err := m.VerifyRefreshToken(a); err != nil {
		t.Fatalf("VerifyRefreshToken error: %v", err)
	}
}

func TestVerify_RejectsWrongKind(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	access, _ := m.SignAccessToken("user-1", types.RoleParticipant)
	refresh, _ := m.SignRefreshToken("user-1", types.RoleParticipant)

	if _, err := m.VerifyRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := m.VerifyAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	m.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	tok, err := m.SignAccessToken("user-1", types.RoleParticipant)
	if err != nil {
		t.Fatalf("SignAccessToken error: %v", err)
	}

	m.now = time.Now
	if _, err := m.VerifyAccessToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_Tampered(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	tok, _ := m.SignAccessToken("user-1", types.RoleParticipant)
	parts := strings.Split(tok, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))

	if _, err := m.VerifyAccessToken(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestVerify_WrongSecretAndIssuer(t *testing.T) {
	t.Parallel()

	tok, _ := newTestManager().SignAccessToken("user-1", types.RoleParticipant)

	other := NewManager(config.JWTConfig{AccessSecret: "other", RefreshSecret: "x", Issuer: "test", AccessTTL: time.Minute})
	if _, err := other.VerifyAccessToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	otherIssuer := NewManager(config.JWTConfig{AccessSecret: "access-secret", RefreshSecret: "x", Issuer: "elsewhere", AccessTTL: time.Minute})
	if _, err := otherIssuer.VerifyAccessToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := newTestManager().VerifyAccessToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
