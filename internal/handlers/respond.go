package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/httpx"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/platform/requestctx"
	"github.com/luxeplan/api/internal/services"
)

var (
	notFoundErrors = []error{
		services.ErrBookingNotFound,
		services.ErrServiceNotFound,
		services.ErrDecoratorNotFound,
		services.ErrCouponNotFound,
		services.ErrUserNotFound,
		services.ErrPaymentSessionNotFound,
	}
	conflictErrors = []error{
		services.ErrBookingCompleted,
		services.ErrBookingNotPending,
		services.ErrBookingNotAssigned,
		services.ErrDecoratorNotAccepted,
		services.ErrDecoratorExists,
		services.ErrDecoratorHasActiveBookings,
		services.ErrCouponExists,
		services.ErrBookingAlreadyPaid,
	}
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

// writeServiceError maps service sentinels onto the error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	httpx.WriteError(ctx, w, serviceErrorEnvelope(ctx, err))
}

func serviceErrorEnvelope(ctx context.Context, err error) httpx.Error {
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		env := httpx.BadRequest(validation.Error())
		if len(validation.Fields) > 0 {
			fields := make(map[string]any, len(validation.Fields))
			for k, v := range validation.Fields {
				fields[k] = v
			}
			env = env.WithDetails(map[string]any{"fields": fields})
		}
		return env
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return httpx.NotFound(target.Error())
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return httpx.Conflict(target.Error())
		}
	}

	switch {
	case errors.Is(err, services.ErrForbidden):
		return httpx.Forbidden(err.Error())
	case errors.Is(err, services.ErrCouponExpired):
		return httpx.NewError("coupon_expired", "coupon expired", http.StatusGone)
	case errors.Is(err, services.ErrPaymentIncomplete):
		return httpx.NewError("payment_incomplete", "payment not completed", http.StatusPaymentRequired)
	case errors.Is(err, services.ErrWebhookSignature):
		return httpx.BadRequest("invalid webhook signature")
	case errors.Is(err, services.ErrPaymentUpstream):
		requestctx.Logger(ctx).Warn("payment processor failure", zap.Error(err))
		return httpx.Upstream("payment processor request failed")
	case errors.Is(err, services.ErrUnavailable), errors.Is(err, services.ErrUploadsDisabled):
		return httpx.Unavailable(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.Unavailable("request timed out")
	}

	requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
	return httpx.Internal(ctx, err.Error())
}

// actorFrom returns the authenticated caller. Role is only authoritative after a role gate or
// ResolveRole has run.
func actorFrom(ctx context.Context) (services.Actor, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.Email) == "" {
		return services.Actor{}, false
	}
	return services.Actor{Email: identity.Email, Role: identity.Role}, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.Unauthorized("authentication required"))
		return services.Actor{}, false
	}
	return actor, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.WriteError(r.Context(), w, httpx.BodyError(err))
		return false
	}
	return true
}

func pageFrom(w http.ResponseWriter, r *http.Request, opts pagination.Options) (pagination.Params, bool) {
	params, err := pagination.FromRequest(r, opts)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.BadRequest(err.Error()))
		return pagination.Params{}, false
	}
	return params, true
}

func unavailable(w http.ResponseWriter, r *http.Request, name string) {
	httpx.WriteError(r.Context(), w, httpx.Unavailable(name+" service unavailable"))
}
