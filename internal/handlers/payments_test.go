package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/luxeplan/api/internal/services"
)

type stubPaymentService struct {
	services.PaymentService

	initiated  *services.InitiatePaymentCommand
	reconciled *services.ReconcilePaymentCommand
	listed     *services.PaymentListQuery
	payload    []byte
	signature  string

	checkout  services.CheckoutResult
	reconcile services.ReconcileResult
	webhook   services.WebhookResult
	err       error
}

func (s *stubPaymentService) Initiate(_ context.Context, cmd services.InitiatePaymentCommand) (services.CheckoutResult, error) {
	s.initiated = &cmd
	return s.checkout, s.err
}

func (s *stubPaymentService) Reconcile(_ context.Context, cmd services.ReconcilePaymentCommand) (services.ReconcileResult, error) {
	s.reconciled = &cmd
	return s.reconcile, s.err
}

func (s *stubPaymentService) List(_ context.Context, query services.PaymentListQuery) (services.Page[services.Payment], error) {
	s.listed = &query
	return services.Page[services.Payment]{Items: []services.Payment{s.reconcile.Payment}, Count: 1}, s.err
}

func (s *stubPaymentService) HandleWebhook(_ context.Context, payload []byte, signature string) (services.WebhookResult, error) {
	s.payload = payload
	s.signature = signature
	return s.webhook, s.err
}

func paymentRouter(svc services.PaymentService) http.Handler {
	return NewRouter(
		WithPaymentRoutes(NewPaymentHandlers(newTestAuthenticator(), svc, testPages).Routes),
		WithWebhookRoutes(NewWebhookHandlers(svc).Routes),
	)
}

func paidPayment() services.Payment {
	return services.Payment{
		TransactionID: "pi_123",
		BookingID:     "bk-1",
		ServiceID:     "svc-1",
		ServiceName:   "Wedding Hall",
		Amount:        1080,
		Currency:      "usd",
		CustomerEmail: clientEmail,
		SessionID:     "cs_test_1",
		PaymentStatus: "paid",
		PaidAt:        time.Date(2025, 5, 10, 15, 30, 0, 0, time.UTC),
	}
}

func TestPaymentCheckoutReturnsHostedURL(t *testing.T) {
	svc := &stubPaymentService{checkout: services.CheckoutResult{URL: "https://checkout.stripe.test/cs_test_1", SessionID: "cs_test_1", Amount: 1080, Currency: "usd"}}
	rr := serve(t, paymentRouter(svc), http.MethodPost, "/api/v1/payments/checkout", clientToken, `{"bookingId":"bk-1","couponCode":"save10"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["url"] != "https://checkout.stripe.test/cs_test_1" || body["sessionId"] != "cs_test_1" {
		t.Fatalf("unexpected checkout body %v", body)
	}
	if svc.initiated == nil || svc.initiated.BookingID != "bk-1" || svc.initiated.CouponCode != "save10" {
		t.Fatalf("unexpected initiate command %+v", svc.initiated)
	}
	if svc.initiated.Actor.Role != "client" {
		t.Fatalf("expected resolved client role, got %q", svc.initiated.Actor.Role)
	}
}

func TestPaymentReconcileStatusReflectsReplay(t *testing.T) {
	svc := &stubPaymentService{reconcile: services.ReconcileResult{Payment: paidPayment()}}
	router := paymentRouter(svc)

	rr := serve(t, router, http.MethodPost, "/api/v1/payments/reconcile", clientToken, `{"sessionId":"cs_test_1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for first reconcile, got %d", rr.Code)
	}
	payment, ok := decodeJSONBody(t, rr)["payment"].(map[string]any)
	if !ok || payment["transactionId"] != "pi_123" {
		t.Fatalf("unexpected payment body %v", payment)
	}

	svc.reconcile.Replayed = true
	rr = serve(t, router, http.MethodPost, "/api/v1/payments/reconcile", clientToken, `{"sessionId":"cs_test_1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for replay, got %d", rr.Code)
	}
	if decodeJSONBody(t, rr)["replayed"] != true {
		t.Fatalf("expected replayed flag")
	}
}

func TestPaymentErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrPaymentIncomplete, http.StatusPaymentRequired, "payment_incomplete"},
		{services.ErrPaymentSessionNotFound, http.StatusNotFound, "not_found"},
		{services.ErrBookingAlreadyPaid, http.StatusConflict, "conflict"},
		{fmt.Errorf("%w: stripe timeout", services.ErrPaymentUpstream), http.StatusBadGateway, "upstream_failure"},
	}
	for _, tc := range cases {
		svc := &stubPaymentService{err: tc.err}
		rr := serve(t, paymentRouter(svc), http.MethodPost, "/api/v1/payments/reconcile", clientToken, `{"sessionId":"cs_test_1"}`)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		if got := decodeJSONBody(t, rr)["error"]; got != tc.code {
			t.Fatalf("%v: expected code %s, got %v", tc.err, tc.code, got)
		}
	}
}

func TestPaymentListPassesEmailFilter(t *testing.T) {
	svc := &stubPaymentService{reconcile: services.ReconcileResult{Payment: paidPayment()}}
	rr := serve(t, paymentRouter(svc), http.MethodGet, "/api/v1/payments?email=client@luxe.test", adminToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.listed == nil || svc.listed.Email != clientEmail || svc.listed.Actor.Role != "admin" {
		t.Fatalf("unexpected list query %+v", svc.listed)
	}
}

func TestStripeWebhookRequiresSignature(t *testing.T) {
	svc := &stubPaymentService{}
	rr := serve(t, paymentRouter(svc), http.MethodPost, "/webhooks/stripe", "", `{"type":"checkout.session.completed"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d", rr.Code)
	}
	if svc.payload != nil {
		t.Fatalf("service must not be called without signature")
	}
}

func TestStripeWebhookForwardsRawPayload(t *testing.T) {
	svc := &stubPaymentService{webhook: services.WebhookResult{EventType: "checkout.session.completed", Handled: true}}
	body := `{"type":"checkout.session.completed"}`
	req := newWebhookRequest(body, "t=1,v1=abc")
	rr := serveRequest(paymentRouter(svc), req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if string(svc.payload) != body || svc.signature != "t=1,v1=abc" {
		t.Fatalf("unexpected forwarded payload %q signature %q", svc.payload, svc.signature)
	}
	if decodeJSONBody(t, rr)["handled"] != true {
		t.Fatalf("expected handled flag")
	}

	svc.err = fmt.Errorf("%w: bad digest", services.ErrWebhookSignature)
	rr = serveRequest(paymentRouter(svc), newWebhookRequest(body, "t=1,v1=bad"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rr.Code)
	}
}
