package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/luxeplan/api/internal/domain"
	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/repositories"
)

const paymentsCollection = "payments"

type paymentDocument struct {
	ID            string    `firestore:"-"`
	TransactionID string    `firestore:"transactionId"`
	BookingID     string    `firestore:"bookingId"`
	ServiceID     string    `firestore:"serviceId"`
	ServiceName   string    `firestore:"serviceName"`
	Amount        float64   `firestore:"amount"`
	Currency      string    `firestore:"currency"`
	CustomerEmail string    `firestore:"customer_email"`
	SessionID     string    `firestore:"sessionId"`
	CouponCode    string    `firestore:"couponCode"`
	Discount      float64   `firestore:"discount"`
	PaymentStatus string    `firestore:"paymentStatus"`
	PaidAt        time.Time `firestore:"paidAt"`
}

// PaymentRepository stores payments under payments/{transactionId}.
type PaymentRepository struct {
	provider *pfirestore.Provider
	payments *pfirestore.Collection[paymentDocument]
	bookings *pfirestore.Collection[bookingDocument]
}

var _ repositories.PaymentRepository = (*PaymentRepository)(nil)

// NewPaymentRepository constructs a Firestore-backed payment repository.
func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &PaymentRepository{
		provider: provider,
		payments: pfirestore.NewCollection[paymentDocument](provider, paymentsCollection, func(d *paymentDocument, id string) { d.ID = id }),
		bookings: newBookingCollection(provider),
	}, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, transactionID string) (domain.Payment, error) {
	doc, err := r.payments.Get(ctx, strings.TrimSpace(transactionID))
	if err != nil {
		return domain.Payment{}, err
	}
	return toDomainPayment(doc), nil
}

// RecordPaid writes the payment and flips the booking to paid. A booking deleted before
// settlement does not block recording the payment.
func (r *PaymentRepository) RecordPaid(ctx context.Context, payment domain.Payment) (domain.Payment, bool, error) {
	id := strings.TrimSpace(payment.TransactionID)
	if id == "" {
		return domain.Payment{}, false, errors.New("payment repository: transaction id is required")
	}

	var (
		stored  paymentDocument
		created bool
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		paymentRef, err := r.payments.Doc(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(paymentRef)
		switch {
		case err == nil:
			stored, err = r.payments.Decode(snap)
			return err
		case status.Code(err) != codes.NotFound:
			return err
		}

		var bookingRef *firestore.DocumentRef
		if bookingID := strings.TrimSpace(payment.BookingID); bookingID != "" {
			ref, err := r.bookings.Doc(ctx, bookingID)
			if err != nil {
				return err
			}
			bookingSnap, err := tx.Get(ref)
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if bookingSnap != nil && bookingSnap.Exists() {
				bookingRef = ref
			}
		}

		doc := fromDomainPayment(payment)
		if err := tx.Create(paymentRef, doc); err != nil {
			return err
		}
		if bookingRef != nil {
			if err := tx.Update(bookingRef, []firestore.Update{
				{Path: "paymentStatus", Value: domain.PaymentPaid},
				{Path: "updatedAt", Value: doc.PaidAt},
			}); err != nil {
				return err
			}
		}
		doc.ID = id
		stored = doc
		created = true
		return nil
	})
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			existing, findErr := r.FindByID(ctx, id)
			if findErr == nil {
				return existing, false, nil
			}
		}
		return domain.Payment{}, false, pfirestore.WrapError("payments.record", err)
	}
	return toDomainPayment(stored), created, nil
}

func (r *PaymentRepository) List(ctx context.Context, filter repositories.PaymentFilter, page pagination.Params) (domain.Page[domain.Payment], error) {
	ref, err := r.payments.Ref(ctx)
	if err != nil {
		return domain.Page[domain.Payment]{}, err
	}
	query := ref.Query
	if email := strings.TrimSpace(filter.CustomerEmail); email != "" {
		query = query.Where("customer_email", "==", email)
	}
	total, err := r.payments.Count(ctx, query)
	if err != nil {
		return domain.Page[domain.Payment]{}, err
	}
	page = pagination.Must(page)
	docs, err := r.payments.Page(ctx, query.OrderBy("paidAt", firestore.Desc), page.Offset(), page.Size)
	if err != nil {
		return domain.Page[domain.Payment]{}, err
	}
	items := make([]domain.Payment, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainPayment(doc))
	}
	return domain.Page[domain.Payment]{Items: items, Count: total}, nil
}

func (r *PaymentRepository) ListPaid(ctx context.Context) ([]domain.Payment, error) {
	ref, err := r.payments.Ref(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := r.payments.All(ctx, ref.Where("paymentStatus", "==", domain.PaymentPaid))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainPayment(doc))
	}
	return out, nil
}

func toDomainPayment(doc paymentDocument) domain.Payment {
	txID := doc.TransactionID
	if txID == "" {
		txID = doc.ID
	}
	return domain.Payment{
		TransactionID: txID,
		BookingID:     doc.BookingID,
		ServiceID:     doc.ServiceID,
		ServiceName:   doc.ServiceName,
		Amount:        doc.Amount,
		Currency:      doc.Currency,
		CustomerEmail: doc.CustomerEmail,
		SessionID:     doc.SessionID,
		CouponCode:    doc.CouponCode,
		Discount:      doc.Discount,
		PaymentStatus: doc.PaymentStatus,
		PaidAt:        doc.PaidAt,
	}
}

func fromDomainPayment(p domain.Payment) paymentDocument {
	return paymentDocument{
		TransactionID: p.TransactionID,
		BookingID:     p.BookingID,
		ServiceID:     p.ServiceID,
		ServiceName:   p.ServiceName,
		Amount:        p.Amount,
		Currency:      p.Currency,
		CustomerEmail: p.CustomerEmail,
		SessionID:     p.SessionID,
		CouponCode:    p.CouponCode,
		Discount:      p.Discount,
		PaymentStatus: p.PaymentStatus,
		PaidAt:        p.PaidAt.UTC(),
	}
}
