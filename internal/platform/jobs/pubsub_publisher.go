package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/luxeplan/api/internal/services"
)

// PubSubNotifier publishes booking notifications to a Pub/Sub topic for downstream delivery.
type PubSubNotifier struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubNotifier constructs a Pub/Sub backed notifier.
func NewPubSubNotifier(topic *pubsub.Topic) (*PubSubNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub notifier: topic is required")
	}
	return &PubSubNotifier{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

type notificationMessage struct {
	Recipient string `json:"recipient"`
	Event     string `json:"event"`
	BookingID string `json:"bookingId,omitempty"`
	Message   string `json:"message"`
	SentAt    string `json:"sentAt,omitempty"`
}

// Notify publishes the notification and waits for the server acknowledgement.
func (p *PubSubNotifier) Notify(ctx context.Context, n services.Notification) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub notifier: not initialised")
	}

	msg := notificationMessage{
		Recipient: strings.TrimSpace(n.Recipient),
		Event:     string(n.Event),
		BookingID: strings.TrimSpace(n.BookingID),
		Message:   n.Message,
	}
	if !n.SentAt.IsZero() {
		msg.SentAt = n.SentAt.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	data, err := p.marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", string(n.Event))
	setAttr(attrs, "bookingId", n.BookingID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Stop flushes pending messages. The topic is owned by the caller's client.
func (p *PubSubNotifier) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
