package services

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

var reportedStatuses = []domain.BookingStatus{
	domain.BookingPending,
	domain.BookingAssigned,
	domain.BookingPlanning,
	domain.BookingCompleted,
}

// ReportServiceDeps bundles collaborators required to construct the report service.
type ReportServiceDeps struct {
	Bookings repositories.BookingRepository
	Payments repositories.PaymentRepository
}

type reportService struct {
	bookings repositories.BookingRepository
	payments repositories.PaymentRepository
}

var _ ReportService = (*reportService)(nil)

// NewReportService assembles the dashboard aggregations.
func NewReportService(deps ReportServiceDeps) (ReportService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("report service: booking repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("report service: payment repository is required")
	}
	return &reportService{bookings: deps.Bookings, payments: deps.Payments}, nil
}

func (s *reportService) BookingStats(ctx context.Context) (BookingStats, error) {
	total, err := s.bookings.Count(ctx, domain.BookingFilter{})
	if err != nil {
		return BookingStats{}, mapRepositoryError(err, nil, nil)
	}
	stats := BookingStats{Total: total, ByStatus: make(map[domain.BookingStatus]int64, len(reportedStatuses))}
	for _, status := range reportedStatuses {
		count, err := s.bookings.Count(ctx, domain.BookingFilter{Status: status})
		if err != nil {
			return BookingStats{}, mapRepositoryError(err, nil, nil)
		}
		stats.ByStatus[status] = count
	}
	return stats, nil
}

func (s *reportService) Revenue(ctx context.Context) (RevenueStats, error) {
	paid, err := s.payments.ListPaid(ctx)
	if err != nil {
		return RevenueStats{}, mapRepositoryError(err, nil, nil)
	}
	totals := make(map[string]decimal.Decimal)
	for _, payment := range paid {
		currency := textutil.LowerKey(payment.Currency)
		totals[currency] = totals[currency].Add(toDecimal(payment.Amount))
	}

	stats := RevenueStats{Payments: int64(len(paid)), ByCurrency: make([]domain.CurrencyTotal, 0, len(totals))}
	for currency, amount := range totals {
		stats.ByCurrency = append(stats.ByCurrency, domain.CurrencyTotal{Currency: currency, Amount: toFloat(amount)})
	}
	sort.Slice(stats.ByCurrency, func(i, j int) bool {
		return stats.ByCurrency[i].Currency < stats.ByCurrency[j].Currency
	})
	return stats, nil
}

func (s *reportService) Demand(ctx context.Context) ([]ServiceDemand, error) {
	bookings, err := s.bookings.Scan(ctx, domain.BookingFilter{})
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	byService := make(map[string]*ServiceDemand)
	for _, booking := range bookings {
		entry, ok := byService[booking.ServiceID]
		if !ok {
			entry = &ServiceDemand{ServiceID: booking.ServiceID, ServiceName: booking.ServiceName}
			byService[booking.ServiceID] = entry
		}
		entry.Bookings++
	}

	out := make([]ServiceDemand, 0, len(byService))
	for _, entry := range byService {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bookings != out[j].Bookings {
			return out[i].Bookings > out[j].Bookings
		}
		return out[i].ServiceName < out[j].ServiceName
	})
	return out, nil
}

func (s *reportService) Earnings(ctx context.Context) ([]DecoratorEarning, error) {
	bookings, err := s.bookings.Scan(ctx, domain.BookingFilter{Status: domain.BookingCompleted})
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}

	type tally struct {
		earning DecoratorEarning
		total   decimal.Decimal
	}
	byDecorator := make(map[string]*tally)
	for _, booking := range bookings {
		if booking.PaymentStatus != domain.PaymentPaid {
			continue
		}
		share := splitCost(booking)
		for i, id := range booking.DecoratorIDs {
			entry, ok := byDecorator[id]
			if !ok {
				entry = &tally{earning: DecoratorEarning{DecoratorID: id}}
				if i < len(booking.DecoratorNames) {
					entry.earning.DecoratorName = booking.DecoratorNames[i]
				}
				if i < len(booking.DecoratorEmails) {
					entry.earning.DecoratorEmail = booking.DecoratorEmails[i]
				}
				byDecorator[id] = entry
			}
			entry.earning.Bookings++
			entry.total = entry.total.Add(share)
		}
	}

	out := make([]DecoratorEarning, 0, len(byDecorator))
	for _, entry := range byDecorator {
		entry.earning.Earnings = toFloat(entry.total)
		out = append(out, entry.earning)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Earnings != out[j].Earnings {
			return out[i].Earnings > out[j].Earnings
		}
		return out[i].DecoratorID < out[j].DecoratorID
	})
	return out, nil
}

func (s *reportService) DecoratorStats(ctx context.Context, actor Actor) (DecoratorStats, error) {
	email := textutil.LowerKey(actor.Email)
	if email == "" {
		return DecoratorStats{}, ErrForbidden
	}
	bookings, err := s.bookings.Scan(ctx, domain.BookingFilter{DecoratorEmail: email})
	if err != nil {
		return DecoratorStats{}, mapRepositoryError(err, nil, nil)
	}

	var stats DecoratorStats
	earnings := decimal.Zero
	for _, booking := range bookings {
		if booking.Status != domain.BookingCompleted {
			stats.Active++
			continue
		}
		stats.Completed++
		if booking.PaymentStatus == domain.PaymentPaid {
			earnings = earnings.Add(splitCost(booking))
		}
	}
	stats.Earnings = toFloat(earnings)
	return stats, nil
}

// splitCost divides a booking's cost evenly across its decorators, rounded to cents.
func splitCost(booking Booking) decimal.Decimal {
	n := len(booking.DecoratorIDs)
	if n == 0 {
		return decimal.Zero
	}
	return toDecimal(booking.Cost).Div(decimal.NewFromInt(int64(n))).Round(2)
}
