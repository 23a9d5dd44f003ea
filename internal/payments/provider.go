package payments

import (
	"context"
	"errors"
	"time"
)

// SessionStatus is the normalised payment state of a hosted checkout session.
type SessionStatus string

const (
	// SessionPaid indicates the processor captured the funds.
	SessionPaid SessionStatus = "paid"
	// SessionUnpaid indicates the customer has not completed payment.
	SessionUnpaid SessionStatus = "unpaid"
	// SessionNoPaymentRequired indicates the session closed without a charge.
	SessionNoPaymentRequired SessionStatus = "no_payment_required"
)

// EventCheckoutCompleted is the webhook event type that triggers reconciliation.
const EventCheckoutCompleted = "checkout.session.completed"

var (
	// ErrSessionNotFound is returned when the processor has no session with the given ID.
	ErrSessionNotFound = errors.New("payments: checkout session not found")
	// ErrInvalidSignature is returned when a webhook payload fails signature verification.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
)

// CheckoutSessionRequest captures the payload required to create a checkout session. Amount is
// expressed in the currency's minor units.
type CheckoutSessionRequest struct {
	Amount        int64
	Currency      string
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the hosted session returned to the client.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// SessionDetails is the processor view of a session used for reconciliation. TransactionID is
// the payment intent ID and is empty until the customer pays.
type SessionDetails struct {
	ID            string
	Status        SessionStatus
	TransactionID string
	AmountTotal   int64
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
}

// WebhookEvent is a verified processor notification.
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// Provider defines the contract for processor adapters.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (SessionDetails, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}
