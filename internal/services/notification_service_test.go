package services

import (
	"context"
	"sync"
	"testing"
	"time"
)

type blockingNotifier struct {
	mu       sync.Mutex
	deadline bool
	ctxErr   error
}

func (b *blockingNotifier) Notify(ctx context.Context, _ Notification) error {
	_, hasDeadline := ctx.Deadline()
	b.mu.Lock()
	b.deadline = hasDeadline
	b.ctxErr = ctx.Err()
	b.mu.Unlock()
	return nil
}

func TestNotificationDispatcherSurvivesRequestCancellation(t *testing.T) {
	notifier := &blockingNotifier{}
	dispatcher, err := NewNotificationDispatcher(NotificationDispatcherDeps{Notifier: notifier, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewNotificationDispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Dispatch(ctx, Notification{Recipient: "client@example.com", Event: NotificationCompleted, BookingID: "bk-1"})
	dispatcher.Wait()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.ctxErr != nil {
		t.Fatalf("expected send context to outlive the request, got %v", notifier.ctxErr)
	}
	if !notifier.deadline {
		t.Fatalf("expected send context to carry the dispatcher timeout")
	}
}

func TestNotificationDispatcherLogsFailures(t *testing.T) {
	notifier := &recordingNotifier{err: errBoom}
	var mu sync.Mutex
	var logged []string
	dispatcher, err := NewNotificationDispatcher(NotificationDispatcherDeps{
		Notifier: notifier,
		Clock:    fixedClock(fixtureNow),
		Logger: func(_ context.Context, event string, fields map[string]any) {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := fields["error"]; ok {
				logged = append(logged, event)
			}
		},
	})
	if err != nil {
		t.Fatalf("NewNotificationDispatcher: %v", err)
	}

	dispatcher.Dispatch(context.Background(), Notification{Recipient: "client@example.com", Event: NotificationAssigned})
	dispatcher.Dispatch(context.Background(), Notification{Event: NotificationAssigned})
	dispatcher.Wait()

	if len(notifier.sent) != 1 {
		t.Fatalf("expected notifications without a recipient to be skipped, got %d sends", len(notifier.sent))
	}
	if !notifier.sent[0].SentAt.Equal(fixtureNow) {
		t.Fatalf("expected sentAt stamped, got %s", notifier.sent[0].SentAt)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 1 || logged[0] != "notification.dispatch_failed" {
		t.Fatalf("expected failure to be logged, got %v", logged)
	}
}

func TestNilNotificationDispatcherIsNoop(t *testing.T) {
	var dispatcher *NotificationDispatcher
	dispatcher.Dispatch(context.Background(), Notification{Recipient: "client@example.com"})
	dispatcher.Wait()
}

func TestNewNotificationDispatcherRequiresNotifier(t *testing.T) {
	if _, err := NewNotificationDispatcher(NotificationDispatcherDeps{}); err == nil {
		t.Fatalf("expected error without notifier")
	}
}
