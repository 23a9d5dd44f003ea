package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/luxeplan/api/internal/domain"
	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

const couponsCollection = "coupons"

type couponDocument struct {
	ID           string    `firestore:"-"`
	Code         string    `firestore:"code"`
	DiscountType string    `firestore:"discountType"`
	Amount       float64   `firestore:"amount"`
	ExpiryDate   time.Time `firestore:"expiryDate"`
	IsActive     bool      `firestore:"isActive"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

// CouponRepository stores coupons under coupons/{CODE}.
type CouponRepository struct {
	coupons *pfirestore.Collection[couponDocument]
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		coupons: pfirestore.NewCollection[couponDocument](provider, couponsCollection, func(d *couponDocument, id string) { d.ID = id }),
	}, nil
}

func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	code := textutil.UpperCode(coupon.Code)
	return r.coupons.Create(ctx, code, couponDocument{
		Code:         code,
		DiscountType: string(coupon.DiscountType),
		Amount:       coupon.Amount,
		ExpiryDate:   coupon.ExpiryDate.UTC(),
		IsActive:     coupon.IsActive,
		CreatedAt:    coupon.CreatedAt.UTC(),
	})
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	doc, err := r.coupons.Get(ctx, textutil.UpperCode(code))
	if err != nil {
		return domain.Coupon{}, err
	}
	return toDomainCoupon(doc), nil
}

func (r *CouponRepository) List(ctx context.Context, page pagination.Params) (domain.Page[domain.Coupon], error) {
	ref, err := r.coupons.Ref(ctx)
	if err != nil {
		return domain.Page[domain.Coupon]{}, err
	}
	total, err := r.coupons.Count(ctx, ref.Query)
	if err != nil {
		return domain.Page[domain.Coupon]{}, err
	}
	page = pagination.Must(page)
	docs, err := r.coupons.Page(ctx, ref.OrderBy("createdAt", firestore.Desc), page.Offset(), page.Size)
	if err != nil {
		return domain.Page[domain.Coupon]{}, err
	}
	items := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainCoupon(doc))
	}
	return domain.Page[domain.Coupon]{Items: items, Count: total}, nil
}

func (r *CouponRepository) SetActive(ctx context.Context, code string, active bool) (domain.Coupon, error) {
	code = textutil.UpperCode(code)
	if err := r.coupons.Update(ctx, code, []firestore.Update{{Path: "isActive", Value: active}}); err != nil {
		return domain.Coupon{}, err
	}
	return r.FindByCode(ctx, code)
}

func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	return r.coupons.Delete(ctx, textutil.UpperCode(code))
}

func toDomainCoupon(doc couponDocument) domain.Coupon {
	code := doc.Code
	if code == "" {
		code = doc.ID
	}
	return domain.Coupon{
		Code:         code,
		DiscountType: domain.DiscountType(doc.DiscountType),
		Amount:       doc.Amount,
		ExpiryDate:   doc.ExpiryDate,
		IsActive:     doc.IsActive,
		CreatedAt:    doc.CreatedAt,
	}
}
