package handlers

import (
	"time"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/services"
)

type userPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Role        string `json:"role"`
	CreatedAt   string `json:"createdAt,omitempty"`
	LastLogin   string `json:"lastLogin,omitempty"`
}

func buildUserPayload(user services.User) userPayload {
	return userPayload{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
		Role:        user.Role,
		CreatedAt:   formatTime(user.CreatedAt),
		LastLogin:   formatTime(user.LastLogin),
	}
}

type servicePayload struct {
	ID             string  `json:"id"`
	Name           string  `json:"service_name"`
	Category       string  `json:"service_category"`
	Description    string  `json:"description"`
	Cost           float64 `json:"cost"`
	Currency       string  `json:"currency"`
	Unit           string  `json:"unit"`
	Image          string  `json:"image"`
	Ratings        float64 `json:"ratings"`
	CreatedByEmail string  `json:"createdByEmail,omitempty"`
	CreatedAt      string  `json:"createdAt,omitempty"`
	UpdatedAt      string  `json:"updatedAt,omitempty"`
}

func buildServicePayload(service services.Service) servicePayload {
	return servicePayload{
		ID:             service.ID,
		Name:           service.Name,
		Category:       service.Category,
		Description:    service.Description,
		Cost:           service.Cost,
		Currency:       service.Currency,
		Unit:           service.Unit,
		Image:          service.Image,
		Ratings:        service.Ratings,
		CreatedByEmail: service.CreatedByEmail,
		CreatedAt:      formatTime(service.CreatedAt),
		UpdatedAt:      formatTime(service.UpdatedAt),
	}
}

type decoratorPayload struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	PhotoURL   string  `json:"photoURL,omitempty"`
	Specialty  string  `json:"specialty"`
	Experience int     `json:"experience"`
	Rating     float64 `json:"rating"`
	Status     string  `json:"status"`
	WorkStatus string  `json:"workStatus"`
	CreatedAt  string  `json:"createdAt,omitempty"`
	UpdatedAt  string  `json:"updatedAt,omitempty"`
}

func buildDecoratorPayload(d services.Decorator) decoratorPayload {
	return decoratorPayload{
		ID:         d.ID,
		UserID:     d.UserID,
		Email:      d.Email,
		Name:       d.Name,
		PhotoURL:   d.PhotoURL,
		Specialty:  d.Specialty,
		Experience: d.Experience,
		Rating:     d.Rating,
		Status:     string(d.Status),
		WorkStatus: string(d.WorkStatus),
		CreatedAt:  formatTime(d.CreatedAt),
		UpdatedAt:  formatTime(d.UpdatedAt),
	}
}

// bookingPayload exposes the assignment arrays plus read-only scalars mirroring index 0.
type bookingPayload struct {
	ID              string   `json:"id"`
	UserEmail       string   `json:"userEmail"`
	UserName        string   `json:"userName,omitempty"`
	ServiceID       string   `json:"serviceId"`
	ServiceName     string   `json:"service_name"`
	Date            string   `json:"date"`
	Time            string   `json:"time,omitempty"`
	Location        string   `json:"location"`
	Notes           string   `json:"notes,omitempty"`
	Cost            float64  `json:"cost"`
	Currency        string   `json:"currency"`
	Status          string   `json:"status"`
	PaymentStatus   string   `json:"paymentStatus"`
	DecoratorIDs    []string `json:"decoratorIds"`
	DecoratorNames  []string `json:"decoratorNames"`
	DecoratorEmails []string `json:"decoratorEmails"`
	DecoratorID     string   `json:"decoratorId,omitempty"`
	DecoratorName   string   `json:"decoratorName,omitempty"`
	DecoratorEmail  string   `json:"decoratorEmail,omitempty"`
	AssignedAt      string   `json:"assignedAt,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
	CompletedAt     string   `json:"completedAt,omitempty"`
}

func buildBookingPayload(b services.Booking) bookingPayload {
	payload := bookingPayload{
		ID:              b.ID,
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
		AssignedAt:      formatTimePtr(b.AssignedAt),
		CreatedAt:       formatTime(b.CreatedAt),
		UpdatedAt:       formatTime(b.UpdatedAt),
		CompletedAt:     formatTimePtr(b.CompletedAt),
	}
	if len(b.DecoratorIDs) > 0 {
		payload.DecoratorID = b.DecoratorIDs[0]
	}
	if len(b.DecoratorNames) > 0 {
		payload.DecoratorName = b.DecoratorNames[0]
	}
	if len(b.DecoratorEmails) > 0 {
		payload.DecoratorEmail = b.DecoratorEmails[0]
	}
	return payload
}

func buildBookingList(items []services.Booking) []bookingPayload {
	out := make([]bookingPayload, 0, len(items))
	for _, b := range items {
		out = append(out, buildBookingPayload(b))
	}
	return out
}

type paymentPayload struct {
	TransactionID string  `json:"transactionId"`
	BookingID     string  `json:"bookingId"`
	ServiceID     string  `json:"serviceId"`
	ServiceName   string  `json:"serviceName"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	CustomerEmail string  `json:"customer_email"`
	SessionID     string  `json:"sessionId"`
	CouponCode    string  `json:"couponCode,omitempty"`
	Discount      float64 `json:"discount"`
	PaymentStatus string  `json:"paymentStatus"`
	PaidAt        string  `json:"paidAt,omitempty"`
}

func buildPaymentPayload(p services.Payment) paymentPayload {
	return paymentPayload{
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
		PaidAt:        formatTime(p.PaidAt),
	}
}

type couponPayload struct {
	Code         string  `json:"code"`
	DiscountType string  `json:"discountType"`
	Amount       float64 `json:"amount"`
	ExpiryDate   string  `json:"expiryDate"`
	IsActive     bool    `json:"isActive"`
	CreatedAt    string  `json:"createdAt,omitempty"`
}

func buildCouponPayload(c services.Coupon) couponPayload {
	return couponPayload{
		Code:         c.Code,
		DiscountType: string(c.DiscountType),
		Amount:       c.Amount,
		ExpiryDate:   formatTime(c.ExpiryDate),
		IsActive:     c.IsActive,
		CreatedAt:    formatTime(c.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return domain.CanonicalDate(t)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
