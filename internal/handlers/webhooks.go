package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/luxeplan/api/internal/platform/httpx"
	"github.com/luxeplan/api/internal/platform/requestctx"
	"github.com/luxeplan/api/internal/services"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBodySize    = 256 * 1024
)

// WebhookHandlers accepts payment processor callbacks.
type WebhookHandlers struct {
	payments services.PaymentService
}

// NewWebhookHandlers constructs the webhook handlers.
func NewWebhookHandlers(payments services.PaymentService) *WebhookHandlers {
	return &WebhookHandlers{payments: payments}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripe)
}

func (h *WebhookHandlers) stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		unavailable(w, r, "payment")
		return
	}
	signature := r.Header.Get(stripeSignatureHeader)
	if signature == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("missing Stripe-Signature header"))
		return
	}
	payload, err := httpx.ReadLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}

	result, err := h.payments.HandleWebhook(ctx, payload, signature)
	if err != nil {
		if !errors.Is(err, services.ErrWebhookSignature) {
			requestctx.Logger(ctx).Error("stripe webhook failed", zap.Error(err))
		}
		writeServiceError(ctx, w, err)
		return
	}

	requestctx.Logger(ctx).Info("stripe webhook processed",
		zap.String("eventType", result.EventType),
		zap.Bool("handled", result.Handled),
		zap.Bool("replayed", result.Replayed),
	)
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"received": true,
		"handled":  result.Handled,
		"replayed": result.Replayed,
	})
}
