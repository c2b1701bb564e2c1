package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Publisher is the publishing half of a message broker.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// QueueSender publishes deliveries for the worker to send.
type QueueSender struct {
	publisher Publisher
	channel   string
}

func NewQueueSender(publisher Publisher, channel string) *QueueSender {
	return &QueueSender{publisher: publisher, channel: channel}
}

func (q *QueueSender) Send(ctx context.Context, delivery Delivery) error {
	if delivery.Email == "" {
		return errors.New("delivery has no recipient")
	}
	data, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	attrs := map[string]string{
		"content-type": "application/json",
		"purpose":      delivery.Purpose,
	}
	if _, err := q.publisher.Publish(ctx, q.channel, data, attrs); err != nil {
		return fmt.Errorf("publish delivery: %w", err)
	}
	return nil
}
