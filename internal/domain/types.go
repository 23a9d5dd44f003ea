package domain

import "time"

// Role values stored on user records.
const (
	RoleClient    = "client"
	RoleDecorator = "decorator"
	RoleAdmin     = "admin"
)

// User is a registered account keyed by normalised email.
type User struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
	Role        string
	CreatedAt   time.Time
	LastLogin   time.Time
}

// Service is a catalog offering that clients can book.
type Service struct {
	ID             string
	Name           string
	Category       string
	Description    string
	Cost           float64
	Currency       string
	Unit           string
	Image          string
	Ratings        float64
	CreatedByEmail string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ServiceSort selects the catalog ordering.
type ServiceSort string

const (
	ServiceSortNewest     ServiceSort = "newest"
	ServiceSortCostAsc    ServiceSort = "cost_asc"
	ServiceSortCostDesc   ServiceSort = "cost_desc"
	ServiceSortRatingDesc ServiceSort = "rating_desc"
)

// DecoratorStatus tracks the application lifecycle of a decorator.
type DecoratorStatus string

const (
	DecoratorPending  DecoratorStatus = "pending"
	DecoratorAccepted DecoratorStatus = "accepted"
	DecoratorRejected DecoratorStatus = "rejected"
)

// WorkStatus tracks whether an accepted decorator is currently engaged.
type WorkStatus string

const (
	WorkAvailable WorkStatus = "available"
	WorkAssigned  WorkStatus = "assigned"
	WorkWorking   WorkStatus = "working"
)

// Decorator is a vendor profile. It shares its ID with the applicant's user record.
type Decorator struct {
	ID         string
	UserID     string
	Email      string
	Name       string
	PhotoURL   string
	Specialty  string
	Experience int
	Rating     float64
	Status     DecoratorStatus
	WorkStatus WorkStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BookingStatus is the workflow state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAssigned  BookingStatus = "assigned"
	BookingPlanning  BookingStatus = "planning"
	BookingCompleted BookingStatus = "completed"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingAssigned, BookingPlanning, BookingCompleted:
		return true
	default:
		return false
	}
}

// PaymentStatus values shared by bookings and payments.
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// Booking is a client's reservation of a service. Decorator assignment is held in three
// parallel arrays kept in assignment order.
type Booking struct {
	ID              string
	UserEmail       string
	UserName        string
	ServiceID       string
	ServiceName     string
	Date            string
	Time            string
	Location        string
	Notes           string
	Cost            float64
	Currency        string
	Status          BookingStatus
	PaymentStatus   string
	DecoratorIDs    []string
	DecoratorNames  []string
	DecoratorEmails []string
	AssignedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// AssignedTo reports whether email is one of the booking's decorators.
func (b Booking) AssignedTo(email string) bool {
	for _, candidate := range b.DecoratorEmails {
		if candidate == email {
			return true
		}
	}
	return false
}

// BookingFilter narrows booking queries. Empty fields do not filter. DateFrom and DateTo are
// canonical bounds forming the half-open range [DateFrom, DateTo).
type BookingFilter struct {
	ServiceID      string
	DateFrom       string
	DateTo         string
	UserEmail      string
	DecoratorEmail string
	Status         BookingStatus
}

// Payment records a settled checkout. ID equals the processor transaction ID.
type Payment struct {
	TransactionID string
	BookingID     string
	ServiceID     string
	ServiceName   string
	Amount        float64
	Currency      string
	CustomerEmail string
	SessionID     string
	CouponCode    string
	Discount      float64
	PaymentStatus string
	PaidAt        time.Time
}

// DiscountType selects how a coupon amount is applied.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Coupon is a discount code. Code doubles as the document ID.
type Coupon struct {
	Code         string
	DiscountType DiscountType
	Amount       float64
	ExpiryDate   time.Time
	IsActive     bool
	CreatedAt    time.Time
}

// Page is a slice of results with the total count of the filtered set.
type Page[T any] struct {
	Items []T
	Count int64
}
