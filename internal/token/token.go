// Package token signs and verifies the HS256 JWTs handed to clients.
// Verification is stateless; callers decide what a valid token grants.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventra/authserver/config"
	"github.com/eventra/authserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// ErrInvalidToken is returned for any tampered, expired or malformed token.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by both token kinds.
type Claims struct {
	Role types.Role `json:"role"`
	Type string     `json:"typ"`
	jwt.RegisteredClaims
}

// Manager issues and verifies access and refresh tokens.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewManager(cfg config.JWTConfig) *Manager {
	return &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// SignAccessToken returns a short-lived token for subject.
func (m *Manager) SignAccessToken(subject string, role types.Role) (string, error) {
	return m.sign(subject, role, typeAccess, m.accessSecret, m.accessTTL)
}

// SignRefreshToken returns a long-lived token for subject. Every call yields
// a distinct value because each token carries a random ID.
func (m *Manager) SignRefreshToken(subject string, role types.Role) (string, error) {
	return m.sign(subject, role, typeRefresh, m.refreshSecret, m.refreshTTL)
}

func (m *Manager) VerifyAccessToken(tokenString string) (*Claims, error) {
	return m.verify(tokenString, typeAccess, m.accessSecret)
}

func (m *Manager) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return m.verify(tokenString, typeRefresh, m.refreshSecret)
}

func (m *Manager) sign(subject string, role types.Role, kind string, secret []byte, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		Role: role,
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (m *Manager) verify(tokenString, kind string, secret []byte) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
