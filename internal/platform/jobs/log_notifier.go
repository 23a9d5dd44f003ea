package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/luxeplan/api/internal/platform/observability"
	"github.com/luxeplan/api/internal/platform/requestctx"
	"github.com/luxeplan/api/internal/services"
)

// LogNotifier writes notifications to the log instead of delivering them. Used when no topic
// is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier that logs through logger, or the request logger when one
// is bound to the context.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg services.Notification) error {
	logger := n.logger
	if scoped, ok := requestctx.LookupLogger(ctx); ok {
		logger = scoped
	}
	logger.Info("notification",
		zap.String("recipient", observability.SanitizeEmail(msg.Recipient)),
		zap.String("event", string(msg.Event)),
		zap.String("bookingId", msg.BookingID),
		zap.String("body", msg.Message),
	)
	return nil
}
