package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultNotificationTimeout = 5 * time.Second

// NotificationEvent names the booking milestone a notification reports.
type NotificationEvent string

const (
	NotificationBookingCreated    NotificationEvent = "booking_created"
	NotificationAssigned          NotificationEvent = "assigned"
	NotificationDecoratorAssigned NotificationEvent = "decorator_assigned"
	NotificationCompleted         NotificationEvent = "completed"
)

// Notification is a message addressed to a booking's client.
type Notification struct {
	Recipient string
	Event     NotificationEvent
	BookingID string
	Message   string
	SentAt    time.Time
}

// Notifier delivers notifications to an outbound channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// NotificationDispatcherDeps bundles collaborators for the dispatcher.
type NotificationDispatcherDeps struct {
	Notifier Notifier
	Timeout  time.Duration
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// NotificationDispatcher sends notifications off the request path. Failures are logged and
// never reach the caller.
type NotificationDispatcher struct {
	notifier Notifier
	timeout  time.Duration
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
	wg       sync.WaitGroup
}

// NewNotificationDispatcher wires the outbound notifier.
func NewNotificationDispatcher(deps NotificationDispatcherDeps) (*NotificationDispatcher, error) {
	if deps.Notifier == nil {
		return nil, errors.New("notification dispatcher: notifier is required")
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultNotificationTimeout
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &NotificationDispatcher{
		notifier: deps.Notifier,
		timeout:  timeout,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Dispatch sends n in the background. The send keeps the request's values but not its
// cancellation, and is bounded by the dispatcher timeout.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, n Notification) {
	if d == nil || n.Recipient == "" {
		return
	}
	if n.SentAt.IsZero() {
		n.SentAt = d.now()
	}
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()

		if err := d.notifier.Notify(sendCtx, n); err != nil {
			d.logger(detached, "notification.dispatch_failed", map[string]any{
				"event":     string(n.Event),
				"bookingId": n.BookingID,
				"error":     err,
			})
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (d *NotificationDispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
