package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/services"
)

type checkoutRequest struct {
	BookingID  string `json:"bookingId"`
	CouponCode string `json:"couponCode"`
}

type reconcileRequest struct {
	SessionID string `json:"sessionId"`
}

// PaymentHandlers exposes hosted checkout and reconciliation.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
	pages    pagination.Options
}

// NewPaymentHandlers constructs the /payments handlers.
func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService, pages pagination.Options) *PaymentHandlers {
	return &PaymentHandlers{authn: authn, payments: payments, pages: pages}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(h.authn.RequireFirebaseAuth())
	r.Use(h.authn.ResolveRole())
	r.Post("/checkout", h.checkout)
	r.Post("/reconcile", h.reconcile)
	r.Get("/", h.list)
}

func (h *PaymentHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		unavailable(w, r, "payment")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.payments.Initiate(r.Context(), services.InitiatePaymentCommand{
		Actor:      actor,
		BookingID:  req.BookingID,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"url":        result.URL,
		"sessionId":  result.SessionID,
		"amount":     result.Amount,
		"currency":   result.Currency,
		"discount":   result.Discount,
		"couponCode": result.CouponCode,
	})
}

func (h *PaymentHandlers) reconcile(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		unavailable(w, r, "payment")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reconcileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.payments.Reconcile(r.Context(), services.ReconcilePaymentCommand{Actor: actor, SessionID: req.SessionID})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, map[string]any{
		"payment":  buildPaymentPayload(result.Payment),
		"replayed": result.Replayed,
	})
}

func (h *PaymentHandlers) list(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		unavailable(w, r, "payment")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, ok := pageFrom(w, r, h.pages)
	if !ok {
		return
	}
	result, err := h.payments.List(r.Context(), services.PaymentListQuery{
		Actor: actor,
		Email: r.URL.Query().Get("email"),
		Page:  page,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]paymentPayload, 0, len(result.Items))
	for _, p := range result.Items {
		items = append(items, buildPaymentPayload(p))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"payments": items, "count": result.Count})
}
