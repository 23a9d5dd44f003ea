package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/luxeplan/api"

// WorkflowMetrics records booking and payment workflow counters.
type WorkflowMetrics struct {
	bookingsCreated    metric.Int64Counter
	bookingTransitions metric.Int64Counter
	paymentsReconciled metric.Int64Counter
}

// NewWorkflowMetrics registers workflow instruments on the supplied meter, or on the global
// meter provider when meter is nil. Instruments that fail to register are skipped.
func NewWorkflowMetrics(meter metric.Meter, logger *zap.Logger) *WorkflowMetrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &WorkflowMetrics{}
	var err error
	if m.bookingsCreated, err = meter.Int64Counter("bookings.created",
		metric.WithDescription("Bookings created by clients")); err != nil {
		logger.Warn("metrics: bookings.created unavailable", zap.Error(err))
	}
	if m.bookingTransitions, err = meter.Int64Counter("bookings.transitions",
		metric.WithDescription("Booking status transitions by target status")); err != nil {
		logger.Warn("metrics: bookings.transitions unavailable", zap.Error(err))
	}
	if m.paymentsReconciled, err = meter.Int64Counter("payments.reconciled",
		metric.WithDescription("Payment reconciliation attempts by outcome")); err != nil {
		logger.Warn("metrics: payments.reconciled unavailable", zap.Error(err))
	}
	return m
}

// BookingCreated increments the booking creation counter.
func (m *WorkflowMetrics) BookingCreated(ctx context.Context, serviceID string) {
	if m == nil || m.bookingsCreated == nil {
		return
	}
	m.bookingsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("service_id", serviceID)))
}

// BookingTransition increments the transition counter for the target status.
func (m *WorkflowMetrics) BookingTransition(ctx context.Context, status string) {
	if m == nil || m.bookingTransitions == nil {
		return
	}
	m.bookingTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// PaymentReconciled increments the reconciliation counter for the given outcome.
func (m *WorkflowMetrics) PaymentReconciled(ctx context.Context, outcome string) {
	if m == nil || m.paymentsReconciled == nil {
		return
	}
	m.paymentsReconciled.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
