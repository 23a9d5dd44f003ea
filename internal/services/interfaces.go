package services

import (
	"context"
	"time"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/pagination"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	User               = domain.User
	Service            = domain.Service
	Decorator          = domain.Decorator
	Booking            = domain.Booking
	BookingStatus      = domain.BookingStatus
	Payment            = domain.Payment
	Coupon             = domain.Coupon
	BookingStats       = domain.BookingStats
	RevenueStats       = domain.RevenueStats
	ServiceDemand      = domain.ServiceDemand
	DecoratorEarning   = domain.DecoratorEarning
	DecoratorStats     = domain.DecoratorStats
	SystemHealthReport = domain.SystemHealthReport
)

// Page is a slice of results with the total count of the filtered set.
type Page[T any] = domain.Page[T]

// Actor identifies the authenticated caller of an operation. Role is empty until a role gate
// or role lookup has resolved it.
type Actor struct {
	Email string
	Role  string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// UserService manages account records and answers role lookups for the authorization gate.
type UserService interface {
	Upsert(ctx context.Context, cmd UpsertUserCommand) (User, bool, error)
	List(ctx context.Context, query UserListQuery) (Page[User], error)
	Role(ctx context.Context, email string) (string, error)
	UpdateRole(ctx context.Context, cmd UpdateRoleCommand) (User, error)

	LookupRole(ctx context.Context, email string) (string, error)
	LookupDecoratorID(ctx context.Context, email string) (string, error)
}

// UpsertUserCommand registers or refreshes the caller's account.
type UpsertUserCommand struct {
	Email       string
	DisplayName string
	PhotoURL    string
}

// UserListQuery pages through accounts other than the caller's.
type UserListQuery struct {
	Actor Actor
	Page  pagination.Params
}

// UpdateRoleCommand changes the role stored on a user record.
type UpdateRoleCommand struct {
	Actor  Actor
	UserID string
	Role   string
}

// CatalogService exposes the public service catalog and its admin maintenance.
type CatalogService interface {
	List(ctx context.Context, query CatalogQuery) (Page[Service], error)
	Get(ctx context.Context, serviceID string) (Service, error)
	Create(ctx context.Context, cmd ServiceCommand) (Service, error)
	Update(ctx context.Context, serviceID string, cmd ServiceCommand) (Service, error)
	Delete(ctx context.Context, serviceID string) error
	UploadURL(ctx context.Context, cmd UploadCommand) (UploadTicket, error)
}

// CatalogQuery filters and sorts the catalog. Nil price bounds do not filter.
type CatalogQuery struct {
	Search   string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Sort     string
	Page     pagination.Params
}

// ServiceCommand carries the editable fields of a catalog entry.
type ServiceCommand struct {
	Actor       Actor
	Name        string
	Category    string
	Description string
	Cost        float64
	Currency    string
	Unit        string
	Image       string
	Ratings     float64
}

// UploadCommand requests a signed URL for a catalog image upload.
type UploadCommand struct {
	FileName    string
	ContentType string
}

// UploadTicket is the signed upload target handed to the client.
type UploadTicket struct {
	URL        string
	Method     string
	Headers    map[string]string
	ObjectPath string
	PublicURL  string
	ExpiresAt  time.Time
}

// BookingService runs the booking workflow.
type BookingService interface {
	Create(ctx context.Context, cmd CreateBookingCommand) (Booking, error)
	Assign(ctx context.Context, cmd AssignBookingCommand) (Booking, error)
	Transition(ctx context.Context, cmd TransitionBookingCommand) (Booking, error)
	Update(ctx context.Context, cmd UpdateBookingCommand) (Booking, error)
	Delete(ctx context.Context, actor Actor, bookingID string) error
	Get(ctx context.Context, actor Actor, bookingID string) (Booking, error)
	List(ctx context.Context, query BookingListQuery) (Page[Booking], error)
	DecoratorBookings(ctx context.Context, query BookingListQuery) (Page[Booking], error)
	Today(ctx context.Context, actor Actor) ([]Booking, error)
}

// CreateBookingCommand books a catalog service for the actor.
type CreateBookingCommand struct {
	Actor     Actor
	UserName  string
	ServiceID string
	Date      string
	Time      string
	Location  string
	Notes     string
}

// AssignBookingCommand assigns decorators to a booking in the given order.
type AssignBookingCommand struct {
	BookingID    string
	DecoratorIDs []string
}

// TransitionBookingCommand moves an assigned booking to planning or completed.
type TransitionBookingCommand struct {
	Actor     Actor
	BookingID string
	Status    BookingStatus
}

// UpdateBookingCommand overwrites the schedule fields of a pending booking.
type UpdateBookingCommand struct {
	Actor     Actor
	BookingID string
	Date      string
	Time      string
	Location  string
	Notes     string
}

// BookingListQuery filters booking listings. Date is a calendar day.
type BookingListQuery struct {
	Actor          Actor
	ServiceID      string
	Date           string
	Email          string
	DecoratorEmail string
	Status         string
	Page           pagination.Params
}

// PaymentService runs hosted checkout and settles payments.
type PaymentService interface {
	Initiate(ctx context.Context, cmd InitiatePaymentCommand) (CheckoutResult, error)
	Reconcile(ctx context.Context, cmd ReconcilePaymentCommand) (ReconcileResult, error)
	List(ctx context.Context, query PaymentListQuery) (Page[Payment], error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error)
}

// InitiatePaymentCommand starts checkout for a booking, optionally applying a coupon.
type InitiatePaymentCommand struct {
	Actor      Actor
	BookingID  string
	CouponCode string
}

// CheckoutResult is the hosted checkout target.
type CheckoutResult struct {
	URL        string
	SessionID  string
	Amount     float64
	Currency   string
	Discount   float64
	CouponCode string
}

// ReconcilePaymentCommand settles a completed checkout session.
type ReconcilePaymentCommand struct {
	Actor     Actor
	SessionID string
}

// ReconcileResult reports the settled payment. Replayed is true when the payment had already
// been recorded.
type ReconcileResult struct {
	Payment  Payment
	Replayed bool
}

// PaymentListQuery pages through payments. Email only applies to admins.
type PaymentListQuery struct {
	Actor Actor
	Email string
	Page  pagination.Params
}

// WebhookResult describes how a processor event was handled.
type WebhookResult struct {
	EventType string
	Handled   bool
	Payment   *Payment
	Replayed  bool
}

// CouponService validates and administers discount codes.
type CouponService interface {
	Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponQuote, error)
	Create(ctx context.Context, cmd CreateCouponCommand) (Coupon, error)
	List(ctx context.Context, page pagination.Params) (Page[Coupon], error)
	SetActive(ctx context.Context, code string, active bool) (Coupon, error)
	Delete(ctx context.Context, code string) error
}

// ValidateCouponCommand quotes a coupon against a cost.
type ValidateCouponCommand struct {
	Code string
	Cost float64
}

// CouponQuote is the discount a coupon yields for a cost.
type CouponQuote struct {
	Code         string
	DiscountType domain.DiscountType
	Amount       float64
	Discount     float64
	FinalCost    float64
}

// CreateCouponCommand defines a new coupon.
type CreateCouponCommand struct {
	Code         string
	DiscountType string
	Amount       float64
	ExpiryDate   string
	IsActive     *bool
}

// ReportService computes dashboard figures at query time.
type ReportService interface {
	BookingStats(ctx context.Context) (BookingStats, error)
	Revenue(ctx context.Context) (RevenueStats, error)
	Demand(ctx context.Context) ([]ServiceDemand, error)
	Earnings(ctx context.Context) ([]DecoratorEarning, error)
	DecoratorStats(ctx context.Context, actor Actor) (DecoratorStats, error)
}

// DecoratorService manages decorator applications and profiles.
type DecoratorService interface {
	Apply(ctx context.Context, cmd ApplyDecoratorCommand) (Decorator, error)
	ListAccepted(ctx context.Context, query DecoratorListQuery) (Page[Decorator], error)
	ListAll(ctx context.Context, query DecoratorListQuery) (Page[Decorator], error)
	Decide(ctx context.Context, cmd DecideDecoratorCommand) (Decorator, error)
	Me(ctx context.Context, actor Actor) (Decorator, error)
}

// ApplyDecoratorCommand submits a decorator application for the actor.
type ApplyDecoratorCommand struct {
	Actor      Actor
	Name       string
	PhotoURL   string
	Specialty  string
	Experience int
}

// DecoratorListQuery filters decorator listings.
type DecoratorListQuery struct {
	Status     string
	Specialty  string
	WorkStatus string
	Page       pagination.Params
}

// DecideDecoratorCommand accepts or rejects an application.
type DecideDecoratorCommand struct {
	DecoratorID string
	Status      string
}

// SystemService provides health and metadata endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
