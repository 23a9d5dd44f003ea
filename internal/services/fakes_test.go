package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/payments"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/repositories"
)

type repoErr struct {
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repoErr) Error() string       { return e.err.Error() }
func (e *repoErr) Unwrap() error       { return e.err }
func (e *repoErr) IsNotFound() bool    { return e.notFound }
func (e *repoErr) IsConflict() bool    { return e.conflict }
func (e *repoErr) IsUnavailable() bool { return e.unavailable }

func notFoundErr(what string) error {
	return &repoErr{err: fmt.Errorf("%s not found", what), notFound: true}
}

func conflictErr(what string) error {
	return &repoErr{err: fmt.Errorf("%s already exists", what), conflict: true}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%02d", prefix, n)
	}
}

type memoryUserRepo struct {
	store map[string]domain.User
	err   error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{store: make(map[string]domain.User)}
}

func (m *memoryUserRepo) Upsert(_ context.Context, in repositories.UserUpsert) (domain.User, bool, error) {
	id := domain.UserKey(in.Email)
	if user, ok := m.store[id]; ok {
		user.LastLogin = in.Now
		if in.DisplayName != "" {
			user.DisplayName = in.DisplayName
		}
		if in.PhotoURL != "" {
			user.PhotoURL = in.PhotoURL
		}
		m.store[id] = user
		return user, false, nil
	}
	user := domain.User{
		ID:          id,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		PhotoURL:    in.PhotoURL,
		Role:        domain.RoleClient,
		CreatedAt:   in.Now,
		LastLogin:   in.Now,
	}
	m.store[id] = user
	return user, true, nil
}

func (m *memoryUserRepo) FindByID(_ context.Context, userID string) (domain.User, error) {
	user, ok := m.store[userID]
	if !ok {
		return domain.User{}, notFoundErr("user")
	}
	return user, nil
}

func (m *memoryUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if m.err != nil {
		return domain.User{}, m.err
	}
	return m.FindByID(ctx, domain.UserKey(email))
}

func (m *memoryUserRepo) List(_ context.Context, filter repositories.UserListFilter) (domain.Page[domain.User], error) {
	var items []domain.User
	for _, user := range m.store {
		if user.Email != filter.ExcludeEmail {
			items = append(items, user)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Email < items[j].Email })
	return domain.Page[domain.User]{Items: pagination.Window(items, filter.Page), Count: int64(len(items))}, nil
}

func (m *memoryUserRepo) UpdateRole(_ context.Context, userID string, role string) (domain.User, error) {
	user, ok := m.store[userID]
	if !ok {
		return domain.User{}, notFoundErr("user")
	}
	user.Role = role
	m.store[userID] = user
	return user, nil
}

type memoryServiceRepo struct {
	store  map[string]domain.Service
	filter repositories.ServiceListFilter
}

func newMemoryServiceRepo(services ...domain.Service) *memoryServiceRepo {
	repo := &memoryServiceRepo{store: make(map[string]domain.Service)}
	for _, s := range services {
		repo.store[s.ID] = s
	}
	return repo
}

func (m *memoryServiceRepo) Insert(_ context.Context, service domain.Service) error {
	if _, ok := m.store[service.ID]; ok {
		return conflictErr("service")
	}
	m.store[service.ID] = service
	return nil
}

func (m *memoryServiceRepo) Update(_ context.Context, service domain.Service) error {
	if _, ok := m.store[service.ID]; !ok {
		return notFoundErr("service")
	}
	m.store[service.ID] = service
	return nil
}

func (m *memoryServiceRepo) Delete(_ context.Context, serviceID string) error {
	if _, ok := m.store[serviceID]; !ok {
		return notFoundErr("service")
	}
	delete(m.store, serviceID)
	return nil
}

func (m *memoryServiceRepo) FindByID(_ context.Context, serviceID string) (domain.Service, error) {
	service, ok := m.store[serviceID]
	if !ok {
		return domain.Service{}, notFoundErr("service")
	}
	return service, nil
}

func (m *memoryServiceRepo) List(_ context.Context, filter repositories.ServiceListFilter) (domain.Page[domain.Service], error) {
	m.filter = filter
	var items []domain.Service
	for _, service := range m.store {
		items = append(items, service)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.Page[domain.Service]{Items: pagination.Window(items, filter.Page), Count: int64(len(items))}, nil
}

type memoryDecoratorRepo struct {
	store  map[string]domain.Decorator
	active map[string]int
	roles  map[string]string
	filter repositories.DecoratorListFilter
}

func newMemoryDecoratorRepo(decorators ...domain.Decorator) *memoryDecoratorRepo {
	repo := &memoryDecoratorRepo{
		store:  make(map[string]domain.Decorator),
		active: make(map[string]int),
		roles:  make(map[string]string),
	}
	for _, d := range decorators {
		repo.store[d.ID] = d
	}
	return repo
}

func (m *memoryDecoratorRepo) Insert(_ context.Context, decorator domain.Decorator) error {
	if _, ok := m.store[decorator.ID]; ok {
		return conflictErr("decorator")
	}
	m.store[decorator.ID] = decorator
	return nil
}

func (m *memoryDecoratorRepo) FindByID(_ context.Context, decoratorID string) (domain.Decorator, error) {
	decorator, ok := m.store[decoratorID]
	if !ok {
		return domain.Decorator{}, notFoundErr("decorator")
	}
	return decorator, nil
}

func (m *memoryDecoratorRepo) List(_ context.Context, filter repositories.DecoratorListFilter) (domain.Page[domain.Decorator], error) {
	m.filter = filter
	var items []domain.Decorator
	for _, d := range m.store {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		items = append(items, d)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.Page[domain.Decorator]{Items: pagination.Window(items, filter.Page), Count: int64(len(items))}, nil
}

func (m *memoryDecoratorRepo) Decide(_ context.Context, decision repositories.DecoratorDecision) (domain.Decorator, error) {
	decorator, ok := m.store[decision.DecoratorID]
	if !ok {
		return domain.Decorator{}, notFoundErr("decorator")
	}
	if decision.Check != nil {
		if err := decision.Check(decorator, m.active[decorator.ID]); err != nil {
			return domain.Decorator{}, err
		}
	}
	decorator.Status = decision.Status
	decorator.UpdatedAt = decision.Now
	if decision.Status == domain.DecoratorRejected {
		decorator.WorkStatus = domain.WorkAvailable
		m.roles[decorator.ID] = domain.RoleClient
	} else {
		m.roles[decorator.ID] = domain.RoleDecorator
	}
	m.store[decorator.ID] = decorator
	return decorator, nil
}

type memoryBookingRepo struct {
	mu         sync.Mutex
	store      map[string]domain.Booking
	decorators *memoryDecoratorRepo
	filter     domain.BookingFilter
	between    [3]string
}

func newMemoryBookingRepo(decorators *memoryDecoratorRepo, bookings ...domain.Booking) *memoryBookingRepo {
	if decorators == nil {
		decorators = newMemoryDecoratorRepo()
	}
	repo := &memoryBookingRepo{store: make(map[string]domain.Booking), decorators: decorators}
	for _, b := range bookings {
		repo.store[b.ID] = b
	}
	return repo
}

func (m *memoryBookingRepo) Insert(_ context.Context, booking domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[booking.ID] = booking
	return nil
}

func (m *memoryBookingRepo) FindByID(_ context.Context, bookingID string) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.store[bookingID]
	if !ok {
		return domain.Booking{}, notFoundErr("booking")
	}
	return booking, nil
}

func (m *memoryBookingRepo) Delete(_ context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[bookingID]; !ok {
		return notFoundErr("booking")
	}
	delete(m.store, bookingID)
	return nil
}

func (m *memoryBookingRepo) Apply(_ context.Context, change repositories.BookingChange) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.store[change.BookingID]
	if !ok {
		return domain.Booking{}, notFoundErr("booking")
	}
	decorators := make([]domain.Decorator, 0, len(change.DecoratorIDs))
	for _, id := range change.DecoratorIDs {
		decorators = append(decorators, m.decorators.store[id])
	}
	updates, err := change.Mutate(&booking, decorators)
	if err != nil {
		return domain.Booking{}, err
	}
	for _, update := range updates {
		d, ok := m.decorators.store[update.DecoratorID]
		if !ok {
			return domain.Booking{}, notFoundErr("decorator")
		}
		d.WorkStatus = update.WorkStatus
		m.decorators.store[update.DecoratorID] = d
	}
	m.store[booking.ID] = booking
	return booking, nil
}

func (m *memoryBookingRepo) matching(filter domain.BookingFilter) []domain.Booking {
	var items []domain.Booking
	for _, b := range m.store {
		if filter.ServiceID != "" && b.ServiceID != filter.ServiceID {
			continue
		}
		if filter.UserEmail != "" && b.UserEmail != filter.UserEmail {
			continue
		}
		if filter.DecoratorEmail != "" && !b.AssignedTo(filter.DecoratorEmail) {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.DateFrom != "" && (b.Date < filter.DateFrom || b.Date >= filter.DateTo) {
			continue
		}
		items = append(items, b)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (m *memoryBookingRepo) List(_ context.Context, filter domain.BookingFilter, page pagination.Params) (domain.Page[domain.Booking], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
	items := m.matching(filter)
	return domain.Page[domain.Booking]{Items: pagination.Window(items, page), Count: int64(len(items))}, nil
}

func (m *memoryBookingRepo) Scan(_ context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matching(filter), nil
}

func (m *memoryBookingRepo) Count(_ context.Context, filter domain.BookingFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(filter))), nil
}

func (m *memoryBookingRepo) ListBetween(_ context.Context, start, end string, decoratorEmail string) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.between = [3]string{start, end, decoratorEmail}
	var out []domain.Booking
	for _, b := range m.matching(domain.BookingFilter{DateFrom: start, DateTo: end, DecoratorEmail: decoratorEmail}) {
		if b.Status != domain.BookingCompleted {
			out = append(out, b)
		}
	}
	return out, nil
}

type memoryPaymentRepo struct {
	mu       sync.Mutex
	store    map[string]domain.Payment
	bookings *memoryBookingRepo
	writes   int
	filter   repositories.PaymentFilter
}

func newMemoryPaymentRepo(bookings *memoryBookingRepo, existing ...domain.Payment) *memoryPaymentRepo {
	repo := &memoryPaymentRepo{store: make(map[string]domain.Payment), bookings: bookings}
	for _, p := range existing {
		repo.store[p.TransactionID] = p
	}
	return repo
}

func (m *memoryPaymentRepo) FindByID(_ context.Context, transactionID string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.store[transactionID]
	if !ok {
		return domain.Payment{}, notFoundErr("payment")
	}
	return payment, nil
}

func (m *memoryPaymentRepo) RecordPaid(_ context.Context, payment domain.Payment) (domain.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.store[payment.TransactionID]; ok {
		return stored, false, nil
	}
	m.store[payment.TransactionID] = payment
	m.writes++
	if m.bookings != nil {
		m.bookings.mu.Lock()
		if booking, ok := m.bookings.store[payment.BookingID]; ok {
			booking.PaymentStatus = domain.PaymentPaid
			m.bookings.store[booking.ID] = booking
		}
		m.bookings.mu.Unlock()
	}
	return payment, true, nil
}

func (m *memoryPaymentRepo) List(_ context.Context, filter repositories.PaymentFilter, page pagination.Params) (domain.Page[domain.Payment], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
	var items []domain.Payment
	for _, p := range m.store {
		if filter.CustomerEmail == "" || p.CustomerEmail == filter.CustomerEmail {
			items = append(items, p)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TransactionID < items[j].TransactionID })
	return domain.Page[domain.Payment]{Items: pagination.Window(items, page), Count: int64(len(items))}, nil
}

func (m *memoryPaymentRepo) ListPaid(_ context.Context) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []domain.Payment
	for _, p := range m.store {
		if p.PaymentStatus == domain.PaymentPaid {
			items = append(items, p)
		}
	}
	return items, nil
}

type memoryCouponRepo struct {
	store map[string]domain.Coupon
}

func newMemoryCouponRepo(coupons ...domain.Coupon) *memoryCouponRepo {
	repo := &memoryCouponRepo{store: make(map[string]domain.Coupon)}
	for _, c := range coupons {
		repo.store[c.Code] = c
	}
	return repo
}

func (m *memoryCouponRepo) Insert(_ context.Context, coupon domain.Coupon) error {
	if _, ok := m.store[coupon.Code]; ok {
		return conflictErr("coupon")
	}
	m.store[coupon.Code] = coupon
	return nil
}

func (m *memoryCouponRepo) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	coupon, ok := m.store[code]
	if !ok {
		return domain.Coupon{}, notFoundErr("coupon")
	}
	return coupon, nil
}

func (m *memoryCouponRepo) List(_ context.Context, page pagination.Params) (domain.Page[domain.Coupon], error) {
	var items []domain.Coupon
	for _, c := range m.store {
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return domain.Page[domain.Coupon]{Items: pagination.Window(items, page), Count: int64(len(items))}, nil
}

func (m *memoryCouponRepo) SetActive(_ context.Context, code string, active bool) (domain.Coupon, error) {
	coupon, ok := m.store[code]
	if !ok {
		return domain.Coupon{}, notFoundErr("coupon")
	}
	coupon.IsActive = active
	m.store[code] = coupon
	return coupon, nil
}

func (m *memoryCouponRepo) Delete(_ context.Context, code string) error {
	if _, ok := m.store[code]; !ok {
		return notFoundErr("coupon")
	}
	delete(m.store, code)
	return nil
}

type fakePaymentProvider struct {
	mu       sync.Mutex
	request  payments.CheckoutSessionRequest
	session  payments.CheckoutSession
	details  payments.SessionDetails
	event    payments.WebhookEvent
	err      error
	retrieve int
}

func (f *fakePaymentProvider) CreateCheckoutSession(_ context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.request = req
	return f.session, f.err
}

func (f *fakePaymentProvider) RetrieveCheckoutSession(_ context.Context, _ string) (payments.SessionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieve++
	return f.details, f.err
}

func (f *fakePaymentProvider) ParseWebhook(_ []byte, signature string) (payments.WebhookEvent, error) {
	if signature != "valid" {
		return payments.WebhookEvent{}, payments.ErrInvalidSignature
	}
	return f.event, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) events() []NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NotificationEvent, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Event)
	}
	return out
}

type recordingMetrics struct {
	mu          sync.Mutex
	created     int
	transitions []string
	outcomes    []string
}

func (r *recordingMetrics) BookingCreated(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *recordingMetrics) BookingTransition(_ context.Context, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, status)
}

func (r *recordingMetrics) PaymentReconciled(_ context.Context, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

var errBoom = errors.New("boom")

var (
	_ repositories.UserRepository      = (*memoryUserRepo)(nil)
	_ repositories.ServiceRepository   = (*memoryServiceRepo)(nil)
	_ repositories.DecoratorRepository = (*memoryDecoratorRepo)(nil)
	_ repositories.BookingRepository   = (*memoryBookingRepo)(nil)
	_ repositories.PaymentRepository   = (*memoryPaymentRepo)(nil)
	_ repositories.CouponRepository    = (*memoryCouponRepo)(nil)
	_ payments.Provider                = (*fakePaymentProvider)(nil)
	_ Notifier                         = (*recordingNotifier)(nil)
	_ WorkflowMetrics                  = (*recordingMetrics)(nil)
)
