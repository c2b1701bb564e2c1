package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes passcodes to the log instead of sending them. Only for
// local development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, delivery Delivery) error {
	l.logger.Info("otp delivery (log only)",
		zap.String("user_id", delivery.UserID),
		zap.String("email", delivery.Email),
		zap.String("purpose", delivery.Purpose),
		zap.String("code", delivery.Code),
		zap.Time("expires_at", delivery.ExpiresAt))
	return nil
}
