package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/httpx"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/services"
)

const (
	defaultValidateLimit  = 20
	defaultValidateWindow = time.Minute
)

type createCouponRequest struct {
	Code         string  `json:"code"`
	DiscountType string  `json:"discountType"`
	Amount       float64 `json:"amount"`
	ExpiryDate   string  `json:"expiryDate"`
	IsActive     *bool   `json:"isActive"`
}

type setCouponActiveRequest struct {
	IsActive *bool `json:"isActive"`
}

type validateCouponRequest struct {
	Code string  `json:"code"`
	Cost float64 `json:"cost"`
}

// CouponHandlers exposes coupon administration and validation.
type CouponHandlers struct {
	authn    *auth.Authenticator
	coupons  services.CouponService
	pages    pagination.Options
	validate attemptLimiter
}

// CouponOption customises coupon handler behaviour.
type CouponOption func(*CouponHandlers)

// WithCouponValidateRateLimit bounds validation attempts per caller within window. A
// non-positive limit disables the limiter.
func WithCouponValidateRateLimit(limit int, window time.Duration, clock func() time.Time) CouponOption {
	return func(h *CouponHandlers) {
		h.validate = newWindowLimiter(limit, window, clock)
	}
}

// NewCouponHandlers constructs the /coupons handlers.
func NewCouponHandlers(authn *auth.Authenticator, coupons services.CouponService, pages pagination.Options, opts ...CouponOption) *CouponHandlers {
	h := &CouponHandlers{
		authn:    authn,
		coupons:  coupons,
		pages:    pages,
		validate: newWindowLimiter(defaultValidateLimit, defaultValidateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /coupons endpoints.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.authn.RequireFirebaseAuth()).Post("/validate", h.validateCoupon)

	r.Group(func(admin chi.Router) {
		admin.Use(h.authn.RequireAdmin())
		admin.Post("/", h.create)
		admin.Get("/", h.list)
		admin.Patch("/{code}", h.setActive)
		admin.Delete("/{code}", h.delete)
	})
}

func (h *CouponHandlers) validateCoupon(w http.ResponseWriter, r *http.Request) {
	if h.coupons == nil {
		unavailable(w, r, "coupon")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if h.validate != nil {
		if allowed, wait := h.validate.Allow(actor.Email); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many coupon attempts, try again later", http.StatusTooManyRequests))
			return
		}
	}
	var req validateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quote, err := h.coupons.Validate(r.Context(), services.ValidateCouponCommand{Code: req.Code, Cost: req.Cost})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"code":         quote.Code,
		"discountType": string(quote.DiscountType),
		"amount":       quote.Amount,
		"discount":     quote.Discount,
		"finalCost":    quote.FinalCost,
	})
}

func (h *CouponHandlers) create(w http.ResponseWriter, r *http.Request) {
	if h.coupons == nil {
		unavailable(w, r, "coupon")
		return
	}
	var req createCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	coupon, err := h.coupons.Create(r.Context(), services.CreateCouponCommand{
		Code:         req.Code,
		DiscountType: req.DiscountType,
		Amount:       req.Amount,
		ExpiryDate:   req.ExpiryDate,
		IsActive:     req.IsActive,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCouponPayload(coupon))
}

func (h *CouponHandlers) list(w http.ResponseWriter, r *http.Request) {
	if h.coupons == nil {
		unavailable(w, r, "coupon")
		return
	}
	page, ok := pageFrom(w, r, h.pages)
	if !ok {
		return
	}
	result, err := h.coupons.List(r.Context(), page)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]couponPayload, 0, len(result.Items))
	for _, c := range result.Items {
		items = append(items, buildCouponPayload(c))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"coupons": items, "count": result.Count})
}

func (h *CouponHandlers) setActive(w http.ResponseWriter, r *http.Request) {
	if h.coupons == nil {
		unavailable(w, r, "coupon")
		return
	}
	var req setCouponActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		httpx.WriteError(r.Context(), w, httpx.BadRequest("isActive is required"))
		return
	}
	coupon, err := h.coupons.SetActive(r.Context(), chi.URLParam(r, "code"), *req.IsActive)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCouponPayload(coupon))
}

func (h *CouponHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if h.coupons == nil {
		unavailable(w, r, "coupon")
		return
	}
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
