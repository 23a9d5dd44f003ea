package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

var (
	// ErrCouponNotFound indicates the code does not exist or is inactive.
	ErrCouponNotFound = errors.New("coupon: coupon not found")
	// ErrCouponExpired indicates the coupon expiry date has passed.
	ErrCouponExpired = errors.New("coupon: coupon expired")
	// ErrCouponExists indicates a coupon with the same code already exists.
	ErrCouponExists = errors.New("coupon: coupon already exists")
)

// CouponServiceDeps bundles collaborators required to construct the coupon service.
type CouponServiceDeps struct {
	Coupons  repositories.CouponRepository
	Location *time.Location
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type couponService struct {
	coupons repositories.CouponRepository
	loc     *time.Location
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

var _ CouponService = (*couponService)(nil)

// NewCouponService assembles the coupon service.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &couponService{
		coupons: deps.Coupons,
		loc:     loc,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *couponService) Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponQuote, error) {
	code := textutil.UpperCode(cmd.Code)

	v := newValidator("coupon")
	v.check(code != "", "code", "is required")
	v.check(cmd.Cost >= 0, "cost", "must not be negative")
	if err := v.err(); err != nil {
		return CouponQuote{}, err
	}
	if !couponCodePattern.MatchString(code) {
		return CouponQuote{}, fmt.Errorf("%w: %s", ErrCouponNotFound, code)
	}

	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return CouponQuote{}, mapRepositoryError(err, ErrCouponNotFound, nil)
	}
	if !coupon.IsActive {
		return CouponQuote{}, fmt.Errorf("%w: %s is inactive", ErrCouponNotFound, code)
	}
	if s.now().After(coupon.ExpiryDate) {
		return CouponQuote{}, fmt.Errorf("%w: %s", ErrCouponExpired, code)
	}

	cost := toDecimal(cmd.Cost)
	discount := discountFor(coupon, cost)
	return CouponQuote{
		Code:         coupon.Code,
		DiscountType: coupon.DiscountType,
		Amount:       coupon.Amount,
		Discount:     toFloat(discount),
		FinalCost:    toFloat(cost.Sub(discount)),
	}, nil
}

// discountFor computes the coupon discount clamped to [0, cost].
func discountFor(coupon Coupon, cost decimal.Decimal) decimal.Decimal {
	amount := toDecimal(coupon.Amount)
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case domain.DiscountPercent:
		discount = cost.Mul(amount).Div(hundred)
	default:
		discount = amount
	}
	discount = discount.Round(2)
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(cost) {
		return cost
	}
	return discount
}

func (s *couponService) Create(ctx context.Context, cmd CreateCouponCommand) (Coupon, error) {
	code := textutil.UpperCode(cmd.Code)
	discountType := domain.DiscountType(textutil.LowerKey(cmd.DiscountType))

	v := newValidator("coupon")
	v.check(couponCodePattern.MatchString(code), "code", "must be 3-32 characters of A-Z, 0-9, _ or -")
	v.check(discountType == domain.DiscountPercent || discountType == domain.DiscountFixed, "discountType", "must be percent or fixed")
	v.check(cmd.Amount > 0, "amount", "must be positive")
	expiry, expiryErr := s.parseExpiry(cmd.ExpiryDate)
	v.check(expiryErr == nil, "expiryDate", "must be YYYY-MM-DD or RFC 3339")
	if err := v.err(); err != nil {
		return Coupon{}, err
	}

	active := true
	if cmd.IsActive != nil {
		active = *cmd.IsActive
	}
	coupon := Coupon{
		Code:         code,
		DiscountType: discountType,
		Amount:       roundCents(cmd.Amount),
		ExpiryDate:   expiry,
		IsActive:     active,
		CreatedAt:    s.now(),
	}
	if err := s.coupons.Insert(ctx, coupon); err != nil {
		return Coupon{}, mapRepositoryError(err, nil, ErrCouponExists)
	}
	s.logger(ctx, "coupon.created", map[string]any{"code": coupon.Code, "discountType": string(coupon.DiscountType)})
	return coupon, nil
}

// parseExpiry accepts a calendar date, which expires at the end of that day, or a timestamp.
func (s *couponService) parseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if day, err := time.ParseInLocation("2006-01-02", raw, s.loc); err == nil {
		return day.AddDate(0, 0, 1).Add(-time.Millisecond).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, domain.ErrInvalidDate
	}
	return t.UTC(), nil
}

func (s *couponService) List(ctx context.Context, page pagination.Params) (Page[Coupon], error) {
	result, err := s.coupons.List(ctx, page)
	if err != nil {
		return Page[Coupon]{}, mapRepositoryError(err, nil, nil)
	}
	if result.Items == nil {
		result.Items = []Coupon{}
	}
	return result, nil
}

func (s *couponService) SetActive(ctx context.Context, code string, active bool) (Coupon, error) {
	code = textutil.UpperCode(code)
	if code == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrCouponNotFound)
	}
	coupon, err := s.coupons.SetActive(ctx, code, active)
	if err != nil {
		return Coupon{}, mapRepositoryError(err, ErrCouponNotFound, nil)
	}
	s.logger(ctx, "coupon.active_changed", map[string]any{"code": code, "isActive": active})
	return coupon, nil
}

func (s *couponService) Delete(ctx context.Context, code string) error {
	code = textutil.UpperCode(code)
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrCouponNotFound)
	}
	if err := s.coupons.Delete(ctx, code); err != nil {
		return mapRepositoryError(err, ErrCouponNotFound, nil)
	}
	return nil
}
