package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/payments"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

const (
	metaBookingID   = "bookingId"
	metaServiceID   = "serviceId"
	metaServiceName = "serviceName"
	metaCouponCode  = "couponCode"
	metaDiscount    = "discount"

	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

var (
	// ErrBookingAlreadyPaid indicates checkout was requested for a settled booking.
	ErrBookingAlreadyPaid = errors.New("payment: booking already paid")
	// ErrPaymentIncomplete indicates the checkout session has not been paid.
	ErrPaymentIncomplete = errors.New("payment: payment not completed")
	// ErrPaymentSessionNotFound indicates the processor has no such checkout session.
	ErrPaymentSessionNotFound = errors.New("payment: checkout session not found")
	// ErrPaymentUpstream indicates the payment processor call failed.
	ErrPaymentUpstream = errors.New("payment: processor request failed")
	// ErrWebhookSignature indicates a webhook payload failed verification.
	ErrWebhookSignature = errors.New("payment: invalid webhook signature")
)

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Bookings        repositories.BookingRepository
	Payments        repositories.PaymentRepository
	Coupons         CouponService
	Provider        payments.Provider
	Metrics         WorkflowMetrics
	DefaultCurrency string
	SuccessURL      string
	CancelURL       string
	Clock           func() time.Time
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	bookings   repositories.BookingRepository
	payments   repositories.PaymentRepository
	coupons    CouponService
	provider   payments.Provider
	metrics    WorkflowMetrics
	currency   string
	successURL string
	cancelURL  string
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

var _ PaymentService = (*paymentService)(nil)

// NewPaymentService assembles the checkout and reconciliation workflow.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("payment service: booking repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("payment service: payment provider is required")
	}
	if strings.TrimSpace(deps.SuccessURL) == "" || strings.TrimSpace(deps.CancelURL) == "" {
		return nil, errors.New("payment service: success and cancel urls are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	var metrics WorkflowMetrics = noopMetrics{}
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}
	currency := textutil.LowerKey(deps.DefaultCurrency)
	if currency == "" {
		currency = "usd"
	}
	return &paymentService{
		bookings:   deps.Bookings,
		payments:   deps.Payments,
		coupons:    deps.Coupons,
		provider:   deps.Provider,
		metrics:    metrics,
		currency:   currency,
		successURL: strings.TrimSpace(deps.SuccessURL),
		cancelURL:  strings.TrimSpace(deps.CancelURL),
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *paymentService) Initiate(ctx context.Context, cmd InitiatePaymentCommand) (CheckoutResult, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return CheckoutResult{}, &ValidationError{Op: "payment", Fields: map[string]string{"bookingId": "is required"}}
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return CheckoutResult{}, mapRepositoryError(err, ErrBookingNotFound, nil)
	}
	if !ownsBooking(cmd.Actor, booking) {
		return CheckoutResult{}, fmt.Errorf("%w: booking belongs to another client", ErrForbidden)
	}
	if booking.PaymentStatus == domain.PaymentPaid {
		return CheckoutResult{}, ErrBookingAlreadyPaid
	}

	cost := toDecimal(booking.Cost)
	discount := decimal.Zero
	couponCode := textutil.UpperCode(cmd.CouponCode)
	if couponCode != "" {
		if s.coupons == nil {
			return CheckoutResult{}, fmt.Errorf("%w: coupons are not configured", ErrCouponNotFound)
		}
		quote, err := s.coupons.Validate(ctx, ValidateCouponCommand{Code: couponCode, Cost: booking.Cost})
		if err != nil {
			return CheckoutResult{}, err
		}
		discount = toDecimal(quote.Discount)
	}

	amount := cost.Sub(discount)
	currency := textutil.LowerKey(booking.Currency)
	if currency == "" {
		currency = s.currency
	}
	minor := payments.ToMinorUnits(amount, currency)
	if minor <= 0 {
		return CheckoutResult{}, &ValidationError{Op: "payment", Fields: map[string]string{"amount": "must be positive after discount"}}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Amount:        minor,
		Currency:      currency,
		ProductName:   booking.ServiceName,
		CustomerEmail: booking.UserEmail,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		Metadata: map[string]string{
			metaBookingID:   booking.ID,
			metaServiceID:   booking.ServiceID,
			metaServiceName: booking.ServiceName,
			metaCouponCode:  couponCode,
			metaDiscount:    discount.StringFixed(2),
		},
	})
	if err != nil {
		s.logger(ctx, "payment.checkout_failed", map[string]any{"bookingId": booking.ID, "error": err})
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrPaymentUpstream, err)
	}

	s.logger(ctx, "payment.checkout_created", map[string]any{
		"bookingId": booking.ID,
		"sessionId": session.ID,
		"amount":    minor,
		"currency":  currency,
	})
	return CheckoutResult{
		URL:        session.URL,
		SessionID:  session.ID,
		Amount:     toFloat(amount),
		Currency:   currency,
		Discount:   toFloat(discount),
		CouponCode: couponCode,
	}, nil
}

func (s *paymentService) Reconcile(ctx context.Context, cmd ReconcilePaymentCommand) (ReconcileResult, error) {
	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return ReconcileResult{}, &ValidationError{Op: "payment", Fields: map[string]string{"sessionId": "is required"}}
	}

	details, err := s.provider.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payments.ErrSessionNotFound) {
			return ReconcileResult{}, fmt.Errorf("%w: %s", ErrPaymentSessionNotFound, sessionID)
		}
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrPaymentUpstream, err)
	}

	customer := textutil.LowerKey(details.CustomerEmail)
	if !cmd.Actor.IsAdmin() && (customer == "" || customer != textutil.LowerKey(cmd.Actor.Email)) {
		return ReconcileResult{}, fmt.Errorf("%w: session belongs to another customer", ErrForbidden)
	}

	if details.TransactionID != "" {
		existing, err := s.payments.FindByID(ctx, details.TransactionID)
		switch {
		case err == nil:
			s.metrics.PaymentReconciled(ctx, "replayed")
			return ReconcileResult{Payment: existing, Replayed: true}, nil
		case !isRepositoryNotFound(err):
			return ReconcileResult{}, mapRepositoryError(err, nil, nil)
		}
	}

	if details.Status != payments.SessionPaid || details.TransactionID == "" {
		s.metrics.PaymentReconciled(ctx, "incomplete")
		s.logger(ctx, "payment.reconcile_incomplete", map[string]any{"sessionId": sessionID, "status": string(details.Status)})
		return ReconcileResult{}, ErrPaymentIncomplete
	}

	payment := Payment{
		TransactionID: details.TransactionID,
		BookingID:     details.Metadata[metaBookingID],
		ServiceID:     details.Metadata[metaServiceID],
		ServiceName:   details.Metadata[metaServiceName],
		Amount:        toFloat(payments.FromMinorUnits(details.AmountTotal, details.Currency)),
		Currency:      details.Currency,
		CustomerEmail: customer,
		SessionID:     details.ID,
		CouponCode:    details.Metadata[metaCouponCode],
		Discount:      metadataAmount(details.Metadata[metaDiscount]),
		PaymentStatus: domain.PaymentPaid,
		PaidAt:        s.now(),
	}

	stored, created, err := s.payments.RecordPaid(ctx, payment)
	if err != nil {
		return ReconcileResult{}, mapRepositoryError(err, nil, nil)
	}
	if !created {
		s.metrics.PaymentReconciled(ctx, "replayed")
		return ReconcileResult{Payment: stored, Replayed: true}, nil
	}

	s.metrics.PaymentReconciled(ctx, "recorded")
	s.logger(ctx, "payment.recorded", map[string]any{
		"transactionId": stored.TransactionID,
		"bookingId":     stored.BookingID,
		"amount":        stored.Amount,
		"currency":      stored.Currency,
	})
	return ReconcileResult{Payment: stored}, nil
}

func (s *paymentService) List(ctx context.Context, query PaymentListQuery) (Page[Payment], error) {
	email := textutil.LowerKey(query.Email)
	if !query.Actor.IsAdmin() {
		email = textutil.LowerKey(query.Actor.Email)
	}
	page, err := s.payments.List(ctx, repositories.PaymentFilter{CustomerEmail: email}, query.Page)
	if err != nil {
		return Page[Payment]{}, mapRepositoryError(err, nil, nil)
	}
	if page.Items == nil {
		page.Items = []Payment{}
	}
	return page, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return WebhookResult{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
		}
		return WebhookResult{}, err
	}

	result := WebhookResult{EventType: event.Type}
	if event.Type != payments.EventCheckoutCompleted && event.Type != eventAsyncPaymentSucceeded {
		return result, nil
	}

	reconciled, err := s.Reconcile(ctx, ReconcilePaymentCommand{
		Actor:     Actor{Role: domain.RoleAdmin},
		SessionID: event.SessionID,
	})
	if errors.Is(err, ErrPaymentIncomplete) {
		return result, nil
	}
	if err != nil {
		return WebhookResult{}, err
	}
	result.Handled = true
	result.Payment = &reconciled.Payment
	result.Replayed = reconciled.Replayed
	return result, nil
}

func metadataAmount(raw string) float64 {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return toFloat(value)
}
