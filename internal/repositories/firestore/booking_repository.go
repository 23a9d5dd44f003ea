package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/luxeplan/api/internal/domain"
	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/repositories"
)

const bookingsCollection = "bookings"

type bookingDocument struct {
	ID              string     `firestore:"-"`
	UserEmail       string     `firestore:"userEmail"`
	UserName        string     `firestore:"userName"`
	ServiceID       string     `firestore:"serviceId"`
	ServiceName     string     `firestore:"service_name"`
	Date            string     `firestore:"date"`
	Time            string     `firestore:"time"`
	Location        string     `firestore:"location"`
	Notes           string     `firestore:"notes"`
	Cost            float64    `firestore:"cost"`
	Currency        string     `firestore:"currency"`
	Status          string     `firestore:"status"`
	PaymentStatus   string     `firestore:"paymentStatus"`
	DecoratorIDs    []string   `firestore:"decoratorIds"`
	DecoratorNames  []string   `firestore:"decoratorNames"`
	DecoratorEmails []string   `firestore:"decoratorEmails"`
	AssignedAt      *time.Time `firestore:"assignedAt,omitempty"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
	CompletedAt     *time.Time `firestore:"completedAt,omitempty"`

	// Single-decorator fields from older records. Read only; lifted into the arrays on decode.
	LegacyDecoratorID    string `firestore:"decoratorId,omitempty"`
	LegacyDecoratorName  string `firestore:"decoratorName,omitempty"`
	LegacyDecoratorEmail string `firestore:"decoratorEmail,omitempty"`
}

// BookingRepository stores bookings and runs the workflow transactions that touch decorators.
type BookingRepository struct {
	provider   *pfirestore.Provider
	bookings   *pfirestore.Collection[bookingDocument]
	decorators *pfirestore.Collection[decoratorDocument]
}

var _ repositories.BookingRepository = (*BookingRepository)(nil)

// NewBookingRepository constructs a Firestore-backed booking repository.
func NewBookingRepository(provider *pfirestore.Provider) (*BookingRepository, error) {
	if provider == nil {
		return nil, errors.New("booking repository requires firestore provider")
	}
	return &BookingRepository{
		provider:   provider,
		bookings:   newBookingCollection(provider),
		decorators: newDecoratorCollection(provider),
	}, nil
}

func newBookingCollection(provider *pfirestore.Provider) *pfirestore.Collection[bookingDocument] {
	return pfirestore.NewCollection[bookingDocument](provider, bookingsCollection, func(d *bookingDocument, id string) {
		d.ID = id
		normaliseLegacyBooking(d)
	})
}

func (r *BookingRepository) Insert(ctx context.Context, booking domain.Booking) error {
	return r.bookings.Create(ctx, booking.ID, fromDomainBooking(booking))
}

func (r *BookingRepository) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	doc, err := r.bookings.Get(ctx, strings.TrimSpace(bookingID))
	if err != nil {
		return domain.Booking{}, err
	}
	return toDomainBooking(doc), nil
}

func (r *BookingRepository) Delete(ctx context.Context, bookingID string) error {
	return r.bookings.Delete(ctx, strings.TrimSpace(bookingID))
}

func (r *BookingRepository) Apply(ctx context.Context, change repositories.BookingChange) (domain.Booking, error) {
	id := strings.TrimSpace(change.BookingID)
	if id == "" {
		return domain.Booking{}, errors.New("booking repository: id is required")
	}
	if change.Mutate == nil {
		return domain.Booking{}, errors.New("booking repository: mutation is required")
	}

	var saved domain.Booking
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		bookingRef, err := r.bookings.Doc(ctx, id)
		if err != nil {
			return err
		}
		doc, err := r.bookings.TxGet(ctx, tx, id)
		if err != nil {
			return err
		}
		decorators, err := r.txDecorators(ctx, tx, change.DecoratorIDs)
		if err != nil {
			return err
		}

		booking := toDomainBooking(doc)
		updates, err := change.Mutate(&booking, decorators)
		if err != nil {
			return err
		}

		booking.ID = id
		if err := tx.Set(bookingRef, fromDomainBooking(booking)); err != nil {
			return err
		}
		for _, update := range updates {
			ref, err := r.decorators.Doc(ctx, update.DecoratorID)
			if err != nil {
				return err
			}
			if err := tx.Update(ref, []firestore.Update{
				{Path: "workStatus", Value: string(update.WorkStatus)},
				{Path: "updatedAt", Value: booking.UpdatedAt},
			}); err != nil {
				return err
			}
		}
		saved = booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, pfirestore.WrapError("bookings.apply", err)
	}
	return saved, nil
}

func (r *BookingRepository) txDecorators(ctx context.Context, tx *firestore.Transaction, ids []string) ([]domain.Decorator, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		ref, err := r.decorators.Doc(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	snaps, err := tx.GetAll(refs)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Decorator, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			out = append(out, domain.Decorator{})
			continue
		}
		doc, err := r.decorators.Decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, toDomainDecorator(doc))
	}
	return out, nil
}

func (r *BookingRepository) List(ctx context.Context, filter domain.BookingFilter, page pagination.Params) (domain.Page[domain.Booking], error) {
	query, err := r.filteredQuery(ctx, filter)
	if err != nil {
		return domain.Page[domain.Booking]{}, err
	}
	total, err := r.bookings.Count(ctx, query)
	if err != nil {
		return domain.Page[domain.Booking]{}, err
	}
	page = pagination.Must(page)
	docs, err := r.bookings.Page(ctx, orderBookings(query, filter), page.Offset(), page.Size)
	if err != nil {
		return domain.Page[domain.Booking]{}, err
	}
	return domain.Page[domain.Booking]{Items: toDomainBookings(docs), Count: total}, nil
}

func (r *BookingRepository) Scan(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	query, err := r.filteredQuery(ctx, filter)
	if err != nil {
		return nil, err
	}
	docs, err := r.bookings.All(ctx, query)
	if err != nil {
		return nil, err
	}
	return toDomainBookings(docs), nil
}

func (r *BookingRepository) Count(ctx context.Context, filter domain.BookingFilter) (int64, error) {
	query, err := r.filteredQuery(ctx, filter)
	if err != nil {
		return 0, err
	}
	return r.bookings.Count(ctx, query)
}

func (r *BookingRepository) ListBetween(ctx context.Context, start, end string, decoratorEmail string) ([]domain.Booking, error) {
	query, err := r.filteredQuery(ctx, domain.BookingFilter{
		DateFrom:       start,
		DateTo:         end,
		DecoratorEmail: decoratorEmail,
	})
	if err != nil {
		return nil, err
	}
	docs, err := r.bookings.All(ctx, query.OrderBy("date", firestore.Asc))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(docs))
	for _, doc := range docs {
		if doc.Status == string(domain.BookingCompleted) {
			continue
		}
		out = append(out, toDomainBooking(doc))
	}
	return out, nil
}

func (r *BookingRepository) filteredQuery(ctx context.Context, filter domain.BookingFilter) (firestore.Query, error) {
	ref, err := r.bookings.Ref(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	query := ref.Query
	if v := strings.TrimSpace(filter.ServiceID); v != "" {
		query = query.Where("serviceId", "==", v)
	}
	if v := strings.TrimSpace(filter.UserEmail); v != "" {
		query = query.Where("userEmail", "==", v)
	}
	if v := strings.TrimSpace(filter.DecoratorEmail); v != "" {
		query = query.Where("decoratorEmails", "array-contains", v)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	if filter.DateFrom != "" {
		query = query.Where("date", ">=", filter.DateFrom)
	}
	if filter.DateTo != "" {
		query = query.Where("date", "<", filter.DateTo)
	}
	return query, nil
}

// orderBookings sorts by date when the query carries a date range, since Firestore requires
// the range field to lead the ordering, and by creation time otherwise.
func orderBookings(query firestore.Query, filter domain.BookingFilter) firestore.Query {
	if filter.DateFrom != "" || filter.DateTo != "" {
		return query.OrderBy("date", firestore.Asc)
	}
	return query.OrderBy("createdAt", firestore.Desc)
}

// normaliseLegacyBooking lifts single-decorator fields into the arrays and rewrites string
// dates into the stored layout. Any write through fromDomainBooking persists the result.
func normaliseLegacyBooking(doc *bookingDocument) {
	if len(doc.DecoratorIDs) == 0 && len(doc.DecoratorEmails) == 0 &&
		(doc.LegacyDecoratorID != "" || doc.LegacyDecoratorEmail != "") {
		doc.DecoratorIDs = []string{doc.LegacyDecoratorID}
		doc.DecoratorNames = []string{doc.LegacyDecoratorName}
		doc.DecoratorEmails = []string{strings.ToLower(strings.TrimSpace(doc.LegacyDecoratorEmail))}
	}
	doc.LegacyDecoratorID = ""
	doc.LegacyDecoratorName = ""
	doc.LegacyDecoratorEmail = ""

	// Unparseable dates are left untouched so the record still loads.
	if canonical, err := domain.ParseBookingDate(doc.Date, time.UTC); err == nil {
		doc.Date = canonical
	}
}

func toDomainBookings(docs []bookingDocument) []domain.Booking {
	out := make([]domain.Booking, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainBooking(doc))
	}
	return out
}

func toDomainBooking(doc bookingDocument) domain.Booking {
	return domain.Booking{
		ID:              doc.ID,
		UserEmail:       doc.UserEmail,
		UserName:        doc.UserName,
		ServiceID:       doc.ServiceID,
		ServiceName:     doc.ServiceName,
		Date:            doc.Date,
		Time:            doc.Time,
		Location:        doc.Location,
		Notes:           doc.Notes,
		Cost:            doc.Cost,
		Currency:        doc.Currency,
		Status:          domain.BookingStatus(doc.Status),
		PaymentStatus:   doc.PaymentStatus,
		DecoratorIDs:    cloneStrings(doc.DecoratorIDs),
		DecoratorNames:  cloneStrings(doc.DecoratorNames),
		DecoratorEmails: cloneStrings(doc.DecoratorEmails),
		AssignedAt:      doc.AssignedAt,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		CompletedAt:     doc.CompletedAt,
	}
}

func fromDomainBooking(b domain.Booking) bookingDocument {
	doc := bookingDocument{
		UserEmail:       b.UserEmail,
		UserName:        b.UserName,
		ServiceID:       b.ServiceID,
		ServiceName:     b.ServiceName,
		Date:            b.Date,
		Time:            b.Time,
		Location:        b.Location,
		Notes:           b.Notes,
		Cost:            b.Cost,
		Currency:        b.Currency,
		Status:          string(b.Status),
		PaymentStatus:   b.PaymentStatus,
		DecoratorIDs:    nonNil(b.DecoratorIDs),
		DecoratorNames:  nonNil(b.DecoratorNames),
		DecoratorEmails: nonNil(b.DecoratorEmails),
		AssignedAt:      utcPtr(b.AssignedAt),
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
		CompletedAt:     utcPtr(b.CompletedAt),
	}
	return doc
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
