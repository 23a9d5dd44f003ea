package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/luxeplan/api/internal/services"
)

func TestPubSubNotifierPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "booking-notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	notifier, err := NewPubSubNotifier(topic)
	if err != nil {
		t.Fatalf("NewPubSubNotifier: %v", err)
	}
	defer notifier.Stop()

	msg := services.Notification{
		Recipient: "client@example.com",
		Event:     services.NotificationBookingCreated,
		BookingID: "01HZX0BOOKING",
		Message:   "Your booking for Wedding Stage has been received.",
		SentAt:    time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
	}
	if err := notifier.Notify(ctx, msg); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload notificationMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Recipient != msg.Recipient || payload.Event != string(msg.Event) {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.SentAt != "2025-05-06T09:00:00.000Z" {
		t.Fatalf("unexpected sentAt %q", payload.SentAt)
	}
	if attr := messages[0].Attributes["bookingId"]; attr != msg.BookingID {
		t.Fatalf("expected bookingId attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["event"]; attr != "booking_created" {
		t.Fatalf("expected event attribute, got %q", attr)
	}
}

func TestNewPubSubNotifierRequiresTopic(t *testing.T) {
	if _, err := NewPubSubNotifier(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}

func TestLogNotifierWritesRedactedRecipient(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	notifier := NewLogNotifier(zap.New(core))

	err := notifier.Notify(context.Background(), services.Notification{
		Recipient: "client@example.com",
		Event:     services.NotificationCompleted,
		BookingID: "b-1",
		Message:   "done",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	entries := logs.FilterMessage("notification").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["recipient"] != "c***@example.com" {
		t.Fatalf("expected redacted recipient, got %v", fields["recipient"])
	}
	if fields["event"] != "completed" {
		t.Fatalf("unexpected event %v", fields["event"])
	}
}
