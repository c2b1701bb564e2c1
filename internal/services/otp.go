package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/eventra/authserver/config"
	"github.com/eventra/authserver/internal/notify"
	"github.com/eventra/authserver/internal/ratelimit"
	"github.com/eventra/authserver/internal/store"
	"github.com/eventra/authserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// OTPRepository defines persistence operations for one-time passcodes.
type OTPRepository interface {
	Upsert(ctx context.Context, otp types.OneTimePasscode) error
	Get(ctx context.Context, userID string, purpose types.OTPPurpose) (types.OneTimePasscode, error)
	ReserveAttempt(ctx context.Context, userID string, purpose types.OTPPurpose, maxAttempts int) (types.OneTimePasscode, error)
	Consume(ctx context.Context, userID string, purpose types.OTPPurpose, codeHash string) error
}

// OTPSender hands a code to the delivery channel.
type OTPSender interface {
	Send(ctx context.Context, delivery notify.Delivery) error
}

// RequestLimiter throttles OTP issuance per key.
type RequestLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// OTPService issues and verifies one-time passcodes.
type OTPService struct {
	users       UserRepository
	repo        OTPRepository
	sender      OTPSender
	limiter     RequestLimiter
	logger      *zap.Logger
	ttl         time.Duration
	maxAttempts int
	hashCost    int
	now         func() time.Time
	generate    func() (string, error)
}

// NewOTPService wires the OTP service. limiter may be nil to disable
// request throttling.
func NewOTPService(
	users UserRepository,
	repo OTPRepository,
	sender OTPSender,
	limiter RequestLimiter,
	cfg config.OTPConfig,
	logger *zap.Logger,
) *OTPService {
	return &OTPService{
		users:       users,
		repo:        repo,
		sender:      sender,
		limiter:     limiter,
		logger:      logger,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
		generate:    generateCode,
	}
}

// CreateAndSend issues a fresh code for (userID, purpose), replacing any
// outstanding one, and dispatches it to the user's email.
func (s *OTPService) CreateAndSend(ctx context.Context, userID string, purpose types.OTPPurpose) error {
	if err := s.checkLimit(ctx, userID, purpose); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	now := s.now()
	otp := types.OneTimePasscode{
		UserID:    user.ID,
		Purpose:   purpose,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Upsert(ctx, otp); err != nil {
		return err
	}

	err = s.sender.Send(ctx, notify.Delivery{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Code:      code,
		Purpose:   string(purpose),
		ExpiresAt: otp.ExpiresAt,
	})
	if err != nil {
		s.logger.Error("otp delivery failed",
			zap.String("user_id", user.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return newError(ErrDelivery, "Failed to send OTP, please try again")
	}

	s.logger.Info("otp issued", zap.String("user_id", user.ID), zap.String("purpose", string(purpose)))
	return nil
}

// Verify checks code against the outstanding passcode and consumes it.
// The attempt is counted before the comparison so concurrent guesses share
// one budget.
func (s *OTPService) Verify(ctx context.Context, userID, code string, purpose types.OTPPurpose) error {
	otp, err := s.repo.ReserveAttempt(ctx, userID, purpose, s.maxAttempts)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.unavailable(ctx, userID, purpose)
		}
		return fmt.Errorf("reserve otp attempt: %w", err)
	}

	if otp.Expired(s.now()) {
		return otpError("OTP expired, please request a new one")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)); err != nil {
		return otpError("Invalid OTP")
	}

	if err := s.repo.Consume(ctx, userID, purpose, otp.CodeHash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return otpError("OTP already used, please request a new one")
		}
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// unavailable explains why no attempt could be reserved.
func (s *OTPService) unavailable(ctx context.Context, userID string, purpose types.OTPPurpose) error {
	otp, err := s.repo.Get(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return otpError("OTP not found, please request a new one")
		}
		return fmt.Errorf("load otp: %w", err)
	}
	if otp.Consumed {
		return otpError("OTP already used, please request a new one")
	}
	return otpError("Too many invalid attempts, please request a new OTP")
}

func (s *OTPService) checkLimit(ctx context.Context, userID string, purpose types.OTPPurpose) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.Allow(ctx, fmt.Sprintf("otp:%s:%s", userID, purpose))
	if err != nil {
		// Fail open when Redis is unavailable.
		s.logger.Warn("otp rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !res.Allowed {
		return newError(ErrRateLimited, fmt.Sprintf(
			"Too many OTP requests; please try again in %s", res.RetryAfter.Round(time.Second)))
	}
	return nil
}

func generateCode() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(otpDigits), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
