package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/eventra/authserver/config"
	"github.com/eventra/authserver/internal/notify"
	"github.com/eventra/authserver/internal/ratelimit"
	"github.com/eventra/authserver/internal/store"
	"github.com/eventra/authserver/internal/token"
	"github.com/eventra/authserver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]types.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]types.User{}}
}

func (m *memUsers) GetByID(_ context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) List(_ context.Context, excludeID string) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []types.User
	for id, user := range m.users {
		if id != excludeID {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (m *memUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, user types.User) (types.User, error) {
	return m.modify(user.ID, func(u *types.User) {
		u.FullName = user.FullName
		u.Phone = user.Phone
		u.AvatarURL = user.AvatarURL
	})
}

func (m *memUsers) UpdateRole(_ context.Context, id string, role types.Role) (types.User, error) {
	return m.modify(id, func(u *types.User) { u.Role = role })
}

func (m *memUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := m.modify(id, func(u *types.User) { u.PasswordHash = passwordHash })
	return err
}

func (m *memUsers) modify(id string, fn func(*types.User)) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return user, nil
}

type otpKey struct {
	userID  string
	purpose types.OTPPurpose
}

type memOTPs struct {
	mu   sync.Mutex
	rows map[otpKey]types.OneTimePasscode
	// afterReserve runs with mu held, after an attempt is counted.
	afterReserve func()
}

func newMemOTPs() *memOTPs {
	return &memOTPs{rows: map[otpKey]types.OneTimePasscode{}}
}

func (m *memOTPs) Upsert(_ context.Context, otp types.OneTimePasscode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp.Consumed = false
	otp.Attempts = 0
	m.rows[otpKey{otp.UserID, otp.Purpose}] = otp
	return nil
}

func (m *memOTPs) Get(_ context.Context, userID string, purpose types.OTPPurpose) (types.OneTimePasscode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.rows[otpKey{userID, purpose}]
	if !ok {
		return types.OneTimePasscode{}, store.ErrNotFound
	}
	return otp, nil
}

func (m *memOTPs) ReserveAttempt(_ context.Context, userID string, purpose types.OTPPurpose, maxAttempts int) (types.OneTimePasscode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := otpKey{userID, purpose}
	otp, ok := m.rows[key]
	if !ok || otp.Consumed || otp.Attempts >= maxAttempts {
		return types.OneTimePasscode{}, store.ErrNotFound
	}
	otp.Attempts++
	m.rows[key] = otp
	if m.afterReserve != nil {
		m.afterReserve()
	}
	return otp, nil
}

func (m *memOTPs) Consume(_ context.Context, userID string, purpose types.OTPPurpose, codeHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := otpKey{userID, purpose}
	otp, ok := m.rows[key]
	if !ok || otp.Consumed || otp.CodeHash != codeHash {
		return store.ErrNotFound
	}
	otp.Consumed = true
	m.rows[key] = otp
	return nil
}

func (m *memOTPs) set(otp types.OneTimePasscode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[otpKey{otp.UserID, otp.Purpose}] = otp
}

type memRefreshTokens struct {
	mu   sync.Mutex
	rows map[string]types.RefreshToken
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{rows: map[string]types.RefreshToken{}}
}

func (m *memRefreshTokens) Upsert(_ context.Context, rt types.RefreshToken) (types.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[rt.UserID]; ok {
		rt.ID = existing.ID
		rt.CreatedAt = existing.CreatedAt
	} else {
		rt.ID = uuid.NewString()
		rt.CreatedAt = time.Now()
	}
	rt.Revoked = false
	rt.UpdatedAt = time.Now()
	m.rows[rt.UserID] = rt
	return rt, nil
}

func (m *memRefreshTokens) GetByToken(_ context.Context, value string) (types.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.rows {
		if rt.Token == value {
			return rt, nil
		}
	}
	return types.RefreshToken{}, store.ErrNotFound
}

func (m *memRefreshTokens) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[userID]; !ok {
		return 0, nil
	}
	delete(m.rows, userID)
	return 1, nil
}

func (m *memRefreshTokens) update(userID string, fn func(*types.RefreshToken)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt := m.rows[userID]
	fn(&rt)
	m.rows[userID] = rt
}

type captureSender struct {
	mu         sync.Mutex
	deliveries []notify.Delivery
	err        error
}

func (c *captureSender) Send(_ context.Context, d notify.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.deliveries = append(c.deliveries, d)
	return nil
}

func (c *captureSender) last() notify.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.deliveries) == 0 {
		return notify.Delivery{}
	}
	return c.deliveries[len(c.deliveries)-1]
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deliveries)
}

type stubLimiter struct {
	result ratelimit.Result
	err    error
	keys   []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (ratelimit.Result, error) {
	s.keys = append(s.keys, key)
	return s.result, s.err
}

type testEnv struct {
	users   *memUsers
	otps    *memOTPs
	refresh *memRefreshTokens
	sender  *captureSender
	tokens  *token.Manager
	otp     *OTPService
	auth    *AuthService
	user    *UserService
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:   newMemUsers(),
		otps:    newMemOTPs(),
		refresh: newMemRefreshTokens(),
		sender:  &captureSender{},
		tokens: token.NewManager(config.JWTConfig{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			Issuer:        "eventra-auth",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		}),
		now: time.Now(),
	}
	clock := func() time.Time { return env.now }
	logger := zap.NewNop()

	env.otp = NewOTPService(env.users, env.otps, env.sender, nil, config.OTPConfig{TTL: 10 * time.Minute, MaxAttempts: 5}, logger)
	env.otp.hashCost = bcrypt.MinCost
	env.otp.now = clock

	env.auth = NewAuthService(env.users, env.refresh, env.otp, env.tokens, logger)
	env.auth.hashCost = bcrypt.MinCost
	env.auth.now = clock

	env.user = NewUserService(env.users)
	env.user.hashCost = bcrypt.MinCost
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

// signupUser registers a participant with password "secret123".
func (e *testEnv) signupUser(t *testing.T, email string) string {
	t.Helper()
	res, err := e.auth.Signup(context.Background(), "Ali Khan", email, "03001234567", "secret123", "")
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return res.UserID
}

// login runs the full password + OTP login and returns the result.
func (e *testEnv) login(t *testing.T, email, password string) LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := e.auth.SigninWithPassword(ctx, email, password); err != nil {
		t.Fatalf("signin %s: %v", email, err)
	}
	res, err := e.auth.VerifyLoginOtp(ctx, email, e.sender.last().Code)
	if err != nil {
		t.Fatalf("verify login %s: %v", email, err)
	}
	return res
}
