package repositories

import (
	"context"
	"time"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/pagination"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Users() UserRepository
	Services() ServiceRepository
	Bookings() BookingRepository
	Payments() PaymentRepository
	Decorators() DecoratorRepository
	Coupons() CouponRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UserUpsert carries the fields refreshed on every sign-in.
type UserUpsert struct {
	Email       string
	DisplayName string
	PhotoURL    string
	Now         time.Time
}

// UserListFilter narrows the admin user listing.
type UserListFilter struct {
	ExcludeEmail string
	Page         pagination.Params
}

// UserRepository stores accounts keyed by domain.UserKey.
type UserRepository interface {
	// Upsert creates the user with role client or refreshes lastLogin and supplied profile
	// fields on an existing record. The role is never modified. created reports which path ran.
	Upsert(ctx context.Context, in UserUpsert) (user domain.User, created bool, err error)
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context, filter UserListFilter) (domain.Page[domain.User], error)
	UpdateRole(ctx context.Context, userID string, role string) (domain.User, error)
}

// ServiceListFilter describes catalog queries.
type ServiceListFilter struct {
	Search   string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Sort     domain.ServiceSort
	Page     pagination.Params
}

// ServiceRepository persists catalog offerings.
type ServiceRepository interface {
	Insert(ctx context.Context, service domain.Service) error
	Update(ctx context.Context, service domain.Service) error
	Delete(ctx context.Context, serviceID string) error
	FindByID(ctx context.Context, serviceID string) (domain.Service, error)
	List(ctx context.Context, filter ServiceListFilter) (domain.Page[domain.Service], error)
}

// WorkStatusUpdate sets a decorator's work status as part of a booking change.
type WorkStatusUpdate struct {
	DecoratorID string
	WorkStatus  domain.WorkStatus
}

// BookingMutation validates and mutates a booking read inside a transaction. decorators holds
// the records requested through BookingChange.DecoratorIDs in the same order; a missing
// decorator appears as the zero value with an empty ID. Returning an
// error aborts the transaction and is passed through unchanged.
type BookingMutation func(booking *domain.Booking, decorators []domain.Decorator) ([]WorkStatusUpdate, error)

// BookingChange describes one transactional booking update.
type BookingChange struct {
	BookingID    string
	DecoratorIDs []string
	Mutate       BookingMutation
}

// BookingRepository persists bookings and coordinates the multi-document workflow updates.
type BookingRepository interface {
	Insert(ctx context.Context, booking domain.Booking) error
	FindByID(ctx context.Context, bookingID string) (domain.Booking, error)
	Delete(ctx context.Context, bookingID string) error
	// Apply reads the booking and requested decorators, runs the mutation, then writes the
	// booking and any work status updates in one transaction.
	Apply(ctx context.Context, change BookingChange) (domain.Booking, error)
	List(ctx context.Context, filter domain.BookingFilter, page pagination.Params) (domain.Page[domain.Booking], error)
	// Scan returns every booking matching filter without paging. Used by reporting.
	Scan(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	Count(ctx context.Context, filter domain.BookingFilter) (int64, error)
	// ListBetween returns non-completed bookings whose canonical date is in [start, end),
	// optionally restricted to one decorator.
	ListBetween(ctx context.Context, start, end string, decoratorEmail string) ([]domain.Booking, error)
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	CustomerEmail string
}

// PaymentRepository stores settled payments keyed by transaction ID.
type PaymentRepository interface {
	FindByID(ctx context.Context, transactionID string) (domain.Payment, error)
	// RecordPaid creates the payment and marks its booking paid in one transaction. When a
	// payment with the same transaction ID exists, the stored record is returned with
	// created=false and nothing is written.
	RecordPaid(ctx context.Context, payment domain.Payment) (stored domain.Payment, created bool, err error)
	List(ctx context.Context, filter PaymentFilter, page pagination.Params) (domain.Page[domain.Payment], error)
	ListPaid(ctx context.Context) ([]domain.Payment, error)
}

// DecoratorListFilter narrows decorator listings.
type DecoratorListFilter struct {
	Status     domain.DecoratorStatus
	Specialty  string
	WorkStatus domain.WorkStatus
	Page       pagination.Params
}

// DecoratorDecision applies an admin verdict to an application.
type DecoratorDecision struct {
	DecoratorID string
	Status      domain.DecoratorStatus
	Now         time.Time
	// Check runs inside the transaction with the current record and the number of bookings
	// still assigned to or planned by the decorator.
	Check func(current domain.Decorator, activeBookings int) error
}

// DecoratorRepository stores decorator applications and profiles.
type DecoratorRepository interface {
	Insert(ctx context.Context, decorator domain.Decorator) error
	FindByID(ctx context.Context, decoratorID string) (domain.Decorator, error)
	List(ctx context.Context, filter DecoratorListFilter) (domain.Page[domain.Decorator], error)
	// Decide sets the application status and adjusts the owner's user role in one transaction.
	Decide(ctx context.Context, decision DecoratorDecision) (domain.Decorator, error)
}

// CouponRepository stores discount codes keyed by upper-cased code.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) error
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context, page pagination.Params) (domain.Page[domain.Coupon], error)
	SetActive(ctx context.Context, code string, active bool) (domain.Coupon, error)
	Delete(ctx context.Context, code string) error
}

// HealthRepository reports the health of backing dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
