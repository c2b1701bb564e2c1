package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eventra/authserver/internal/mq"
	"go.uber.org/zap"
)

// Subscriber is the consuming half of a message broker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Worker consumes queued deliveries and hands them to a Sender.
type Worker struct {
	subscriber Subscriber
	channel    string
	sender     Sender
	logger     *zap.Logger
}

func NewWorker(subscriber Subscriber, channel string, sender Sender, logger *zap.Logger) *Worker {
	return &Worker{
		subscriber: subscriber,
		channel:    channel,
		sender:     sender,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("otp worker started", zap.String("channel", w.channel))
	return w.subscriber.Subscribe(ctx, w.channel, w.Handle)
}

// Handle sends one queued delivery. Undecodable messages are dropped;
// send failures are returned so the broker redelivers.
func (w *Worker) Handle(ctx context.Context, msg mq.Message) error {
	var delivery Delivery
	if err := json.Unmarshal(msg.Data, &delivery); err != nil {
		w.logger.Error("dropping malformed otp message", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if err := w.sender.Send(ctx, delivery); err != nil {
		w.logger.Warn("otp send failed",
			zap.String("message_id", msg.ID),
			zap.String("user_id", delivery.UserID),
			zap.Error(err))
		return fmt.Errorf("send otp: %w", err)
	}
	w.logger.Info("otp sent", zap.String("message_id", msg.ID), zap.String("user_id", delivery.UserID))
	return nil
}
