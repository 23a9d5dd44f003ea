package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/services"
)

type stubCouponService struct {
	services.CouponService

	validated *services.ValidateCouponCommand
	created   *services.CreateCouponCommand
	active    *bool
	deleted   string
	quote     services.CouponQuote
	coupon    services.Coupon
	err       error
}

func (s *stubCouponService) Validate(_ context.Context, cmd services.ValidateCouponCommand) (services.CouponQuote, error) {
	s.validated = &cmd
	return s.quote, s.err
}

func (s *stubCouponService) Create(_ context.Context, cmd services.CreateCouponCommand) (services.Coupon, error) {
	s.created = &cmd
	return s.coupon, s.err
}

func (s *stubCouponService) List(context.Context, pagination.Params) (services.Page[services.Coupon], error) {
	return services.Page[services.Coupon]{Items: []services.Coupon{s.coupon}, Count: 1}, s.err
}

func (s *stubCouponService) SetActive(_ context.Context, code string, active bool) (services.Coupon, error) {
	s.active = &active
	return s.coupon, s.err
}

func (s *stubCouponService) Delete(_ context.Context, code string) error {
	s.deleted = code
	return s.err
}

func couponRouter(svc services.CouponService, opts ...CouponOption) http.Handler {
	return NewRouter(WithCouponRoutes(NewCouponHandlers(newTestAuthenticator(), svc, testPages, opts...).Routes))
}

func TestCouponValidateQuotesDiscount(t *testing.T) {
	svc := &stubCouponService{quote: services.CouponQuote{Code: "SAVE10", DiscountType: domain.DiscountPercent, Amount: 10, Discount: 25, FinalCost: 224.99}}
	rr := serve(t, couponRouter(svc), http.MethodPost, "/api/v1/coupons/validate", clientToken, `{"code":"save10","cost":249.99}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["discount"] != float64(25) || body["finalCost"] != 224.99 {
		t.Fatalf("unexpected quote %v", body)
	}
	if svc.validated == nil || svc.validated.Cost != 249.99 {
		t.Fatalf("unexpected validate command %+v", svc.validated)
	}
}

func TestCouponValidateExpiredIsGone(t *testing.T) {
	svc := &stubCouponService{err: services.ErrCouponExpired}
	rr := serve(t, couponRouter(svc), http.MethodPost, "/api/v1/coupons/validate", clientToken, `{"code":"old","cost":100}`)
	if rr.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", rr.Code)
	}
	if got := decodeJSONBody(t, rr)["error"]; got != "coupon_expired" {
		t.Fatalf("expected coupon_expired, got %v", got)
	}
}

func TestCouponValidateIsRateLimitedPerCaller(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := &stubCouponService{quote: services.CouponQuote{Code: "SAVE10"}}
	router := couponRouter(svc, WithCouponValidateRateLimit(1, time.Minute, func() time.Time { return now }))

	if rr := serve(t, router, http.MethodPost, "/api/v1/coupons/validate", clientToken, `{"code":"save10","cost":100}`); rr.Code != http.StatusOK {
		t.Fatalf("expected first attempt to pass, got %d", rr.Code)
	}
	rr := serve(t, router, http.MethodPost, "/api/v1/coupons/validate", clientToken, `{"code":"save10","cost":100}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}
	if rr := serve(t, router, http.MethodPost, "/api/v1/coupons/validate", adminToken, `{"code":"save10","cost":100}`); rr.Code != http.StatusOK {
		t.Fatalf("expected other caller to pass, got %d", rr.Code)
	}
}

func TestCouponAdministrationRequiresAdmin(t *testing.T) {
	svc := &stubCouponService{coupon: services.Coupon{Code: "SAVE10", DiscountType: domain.DiscountPercent, Amount: 10, IsActive: true}}
	router := couponRouter(svc)

	if rr := serve(t, router, http.MethodPost, "/api/v1/coupons", clientToken, `{"code":"save10","discountType":"percent","amount":10}`); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", rr.Code)
	}

	rr := serve(t, router, http.MethodPost, "/api/v1/coupons", adminToken, `{"code":"save10","discountType":"percent","amount":10,"expiryDate":"2025-12-31"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.created == nil || svc.created.ExpiryDate != "2025-12-31" || svc.created.IsActive != nil {
		t.Fatalf("unexpected create command %+v", svc.created)
	}

	rr = serve(t, router, http.MethodPatch, "/api/v1/coupons/SAVE10", adminToken, `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without isActive, got %d", rr.Code)
	}
	rr = serve(t, router, http.MethodPatch, "/api/v1/coupons/SAVE10", adminToken, `{"isActive":false}`)
	if rr.Code != http.StatusOK || svc.active == nil || *svc.active {
		t.Fatalf("expected deactivation, got %d %v", rr.Code, svc.active)
	}

	rr = serve(t, router, http.MethodDelete, "/api/v1/coupons/SAVE10", adminToken, "")
	if rr.Code != http.StatusNoContent || svc.deleted != "SAVE10" {
		t.Fatalf("expected delete of SAVE10, got %d %q", rr.Code, svc.deleted)
	}
}

func TestCouponConflictOnDuplicate(t *testing.T) {
	svc := &stubCouponService{err: services.ErrCouponExists}
	rr := serve(t, couponRouter(svc), http.MethodPost, "/api/v1/coupons", adminToken, `{"code":"save10","discountType":"fixed","amount":10}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}
