package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

const (
	maxAssignedDecorators = 10
	maxLocationRunes      = 300
	maxNotesRunes         = 2000
	maxTimeRunes          = 40
)

var (
	// ErrBookingNotFound indicates the booking does not exist.
	ErrBookingNotFound = errors.New("booking: booking not found")
	// ErrBookingCompleted indicates the booking already reached its terminal state.
	ErrBookingCompleted = errors.New("booking: booking already completed")
	// ErrBookingNotPending indicates the booking can no longer be edited.
	ErrBookingNotPending = errors.New("booking: booking is no longer pending")
	// ErrBookingNotAssigned indicates a workflow step that requires assigned decorators.
	ErrBookingNotAssigned = errors.New("booking: booking has not been assigned")
	// ErrDecoratorNotFound indicates a referenced decorator does not exist.
	ErrDecoratorNotFound = errors.New("decorator: decorator not found")
	// ErrDecoratorNotAccepted indicates a decorator whose application was not accepted.
	ErrDecoratorNotAccepted = errors.New("decorator: decorator is not accepted")
)

// WorkflowMetrics records booking and payment workflow counters.
type WorkflowMetrics interface {
	BookingCreated(ctx context.Context, serviceID string)
	BookingTransition(ctx context.Context, status string)
	PaymentReconciled(ctx context.Context, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) BookingCreated(context.Context, string)    {}
func (noopMetrics) BookingTransition(context.Context, string) {}
func (noopMetrics) PaymentReconciled(context.Context, string) {}

// BookingServiceDeps bundles collaborators required to construct the booking service.
type BookingServiceDeps struct {
	Bookings      repositories.BookingRepository
	Services      repositories.ServiceRepository
	Notifications *NotificationDispatcher
	Metrics       WorkflowMetrics
	Location      *time.Location
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type bookingService struct {
	bookings repositories.BookingRepository
	services repositories.ServiceRepository
	notify   *NotificationDispatcher
	metrics  WorkflowMetrics
	loc      *time.Location
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

var _ BookingService = (*bookingService)(nil)

// NewBookingService assembles the booking workflow engine.
func NewBookingService(deps BookingServiceDeps) (BookingService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("booking service: booking repository is required")
	}
	if deps.Services == nil {
		return nil, errors.New("booking service: service repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	var metrics WorkflowMetrics = noopMetrics{}
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &bookingService{
		bookings: deps.Bookings,
		services: deps.Services,
		notify:   deps.Notifications,
		metrics:  metrics,
		loc:      loc,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

func (s *bookingService) Create(ctx context.Context, cmd CreateBookingCommand) (Booking, error) {
	email := textutil.LowerKey(cmd.Actor.Email)
	serviceID := strings.TrimSpace(cmd.ServiceID)

	v := newValidator("booking")
	v.check(email != "", "userEmail", "is required")
	v.check(serviceID != "", "serviceId", "is required")
	date, dateErr := domain.ParseBookingDate(cmd.Date, s.loc)
	v.check(dateErr == nil, "date", "must be YYYY-MM-DD or RFC 3339")
	location := textutil.PlainText(cmd.Location, maxLocationRunes)
	v.check(location != "", "location", "is required")
	if err := v.err(); err != nil {
		return Booking{}, err
	}

	service, err := s.services.FindByID(ctx, serviceID)
	if err != nil {
		return Booking{}, mapRepositoryError(err, ErrServiceNotFound, nil)
	}

	now := s.now()
	booking := Booking{
		ID:              s.newID(),
		UserEmail:       email,
		UserName:        textutil.PlainText(cmd.UserName, maxDisplayNameRunes),
		ServiceID:       service.ID,
		ServiceName:     service.Name,
		Date:            date,
		Time:            textutil.PlainText(cmd.Time, maxTimeRunes),
		Location:        location,
		Notes:           textutil.PlainText(cmd.Notes, maxNotesRunes),
		Cost:            service.Cost,
		Currency:        service.Currency,
		Status:          domain.BookingPending,
		PaymentStatus:   domain.PaymentUnpaid,
		DecoratorIDs:    []string{},
		DecoratorNames:  []string{},
		DecoratorEmails: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.bookings.Insert(ctx, booking); err != nil {
		return Booking{}, mapRepositoryError(err, nil, nil)
	}

	s.metrics.BookingCreated(ctx, booking.ServiceID)
	s.logger(ctx, "booking.created", map[string]any{"bookingId": booking.ID, "serviceId": booking.ServiceID})
	s.notify.Dispatch(ctx, Notification{
		Recipient: booking.UserEmail,
		Event:     NotificationBookingCreated,
		BookingID: booking.ID,
		Message:   fmt.Sprintf("Your booking for %s on %s has been received.", booking.ServiceName, booking.Date[:10]),
	})
	return booking, nil
}

func (s *bookingService) Assign(ctx context.Context, cmd AssignBookingCommand) (Booking, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	ids, err := normaliseDecoratorIDs(cmd.DecoratorIDs)
	if err != nil {
		return Booking{}, err
	}
	if bookingID == "" {
		return Booking{}, fmt.Errorf("%w: id is required", ErrBookingNotFound)
	}

	booking, err := s.bookings.Apply(ctx, repositories.BookingChange{
		BookingID:    bookingID,
		DecoratorIDs: ids,
		Mutate: func(b *domain.Booking, decorators []domain.Decorator) ([]repositories.WorkStatusUpdate, error) {
			if b.Status == domain.BookingCompleted {
				return nil, ErrBookingCompleted
			}
			names := make([]string, 0, len(decorators))
			emails := make([]string, 0, len(decorators))
			updates := make([]repositories.WorkStatusUpdate, 0, len(decorators))
			for i, decorator := range decorators {
				if decorator.ID == "" {
					return nil, fmt.Errorf("%w: %s", ErrDecoratorNotFound, ids[i])
				}
				if decorator.Status != domain.DecoratorAccepted {
					return nil, fmt.Errorf("%w: %s", ErrDecoratorNotAccepted, decorator.ID)
				}
				names = append(names, decorator.Name)
				emails = append(emails, textutil.LowerKey(decorator.Email))
				updates = append(updates, repositories.WorkStatusUpdate{DecoratorID: decorator.ID, WorkStatus: domain.WorkWorking})
			}
			// Previous assignees dropped from the crew become available again.
			for _, prev := range b.DecoratorIDs {
				if !slices.Contains(ids, prev) {
					updates = append(updates, repositories.WorkStatusUpdate{DecoratorID: prev, WorkStatus: domain.WorkAvailable})
				}
			}
			now := s.now()
			b.Status = domain.BookingAssigned
			b.DecoratorIDs = ids
			b.DecoratorNames = names
			b.DecoratorEmails = emails
			b.AssignedAt = &now
			b.UpdatedAt = now
			return updates, nil
		},
	})
	if err != nil {
		return Booking{}, mapRepositoryError(err, ErrBookingNotFound, nil)
	}

	s.metrics.BookingTransition(ctx, string(domain.BookingAssigned))
	s.logger(ctx, "booking.assigned", map[string]any{"bookingId": booking.ID, "decorators": len(booking.DecoratorIDs)})
	s.notify.Dispatch(ctx, Notification{
		Recipient: booking.UserEmail,
		Event:     NotificationAssigned,
		BookingID: booking.ID,
		Message:   fmt.Sprintf("%s has been assigned to your %s booking.", strings.Join(booking.DecoratorNames, ", "), booking.ServiceName),
	})
	return booking, nil
}

func (s *bookingService) Transition(ctx context.Context, cmd TransitionBookingCommand) (Booking, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	email := textutil.LowerKey(cmd.Actor.Email)
	target := domain.BookingStatus(strings.TrimSpace(string(cmd.Status)))

	v := newValidator("booking")
	v.check(bookingID != "", "bookingId", "is required")
	v.check(target == domain.BookingPlanning || target == domain.BookingCompleted, "status", "must be planning or completed")
	if err := v.err(); err != nil {
		return Booking{}, err
	}

	booking, err := s.bookings.Apply(ctx, repositories.BookingChange{
		BookingID: bookingID,
		Mutate: func(b *domain.Booking, _ []domain.Decorator) ([]repositories.WorkStatusUpdate, error) {
			if b.Status == domain.BookingCompleted {
				return nil, ErrBookingCompleted
			}
			if b.Status != domain.BookingAssigned && b.Status != domain.BookingPlanning {
				return nil, ErrBookingNotAssigned
			}
			if !b.AssignedTo(email) {
				return nil, fmt.Errorf("%w: booking is not assigned to caller", ErrForbidden)
			}

			now := s.now()
			b.Status = target
			b.UpdatedAt = now
			if target == domain.BookingPlanning {
				return []repositories.WorkStatusUpdate{{
					DecoratorID: decoratorIDFor(*b, email),
					WorkStatus:  domain.WorkWorking,
				}}, nil
			}

			b.CompletedAt = &now
			updates := make([]repositories.WorkStatusUpdate, 0, len(b.DecoratorIDs))
			for _, id := range b.DecoratorIDs {
				updates = append(updates, repositories.WorkStatusUpdate{DecoratorID: id, WorkStatus: domain.WorkAvailable})
			}
			return updates, nil
		},
	})
	if err != nil {
		return Booking{}, mapRepositoryError(err, ErrBookingNotFound, nil)
	}

	s.metrics.BookingTransition(ctx, string(target))
	s.logger(ctx, "booking.status_changed", map[string]any{"bookingId": booking.ID, "status": string(target)})

	event := NotificationDecoratorAssigned
	message := fmt.Sprintf("Your decorator has started planning your %s booking.", booking.ServiceName)
	if target == domain.BookingCompleted {
		event = NotificationCompleted
		message = fmt.Sprintf("Your %s booking has been completed.", booking.ServiceName)
	}
	s.notify.Dispatch(ctx, Notification{
		Recipient: booking.UserEmail,
		Event:     event,
		BookingID: booking.ID,
		Message:   message,
	})
	return booking, nil
}

func (s *bookingService) Update(ctx context.Context, cmd UpdateBookingCommand) (Booking, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)

	v := newValidator("booking")
	v.check(bookingID != "", "bookingId", "is required")
	date, dateErr := domain.ParseBookingDate(cmd.Date, s.loc)
	v.check(dateErr == nil, "date", "must be YYYY-MM-DD or RFC 3339")
	location := textutil.PlainText(cmd.Location, maxLocationRunes)
	v.check(location != "", "location", "is required")
	if err := v.err(); err != nil {
		return Booking{}, err
	}

	booking, err := s.bookings.Apply(ctx, repositories.BookingChange{
		BookingID: bookingID,
		Mutate: func(b *domain.Booking, _ []domain.Decorator) ([]repositories.WorkStatusUpdate, error) {
			if !ownsBooking(cmd.Actor, *b) {
				return nil, fmt.Errorf("%w: only the owner or an admin may edit a booking", ErrForbidden)
			}
			if b.Status != domain.BookingPending {
				return nil, ErrBookingNotPending
			}
			b.Date = date
			b.Time = textutil.PlainText(cmd.Time, maxTimeRunes)
			b.Location = location
			b.Notes = textutil.PlainText(cmd.Notes, maxNotesRunes)
			b.UpdatedAt = s.now()
			return nil, nil
		},
	})
	if err != nil {
		return Booking{}, mapRepositoryError(err, ErrBookingNotFound, nil)
	}
	return booking, nil
}

func (s *bookingService) Delete(ctx context.Context, actor Actor, bookingID string) error {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return err
	}
	if !ownsBooking(actor, booking) {
		return fmt.Errorf("%w: only the owner or an admin may delete a booking", ErrForbidden)
	}
	if err := s.bookings.Delete(ctx, booking.ID); err != nil {
		return mapRepositoryError(err, ErrBookingNotFound, nil)
	}
	s.logger(ctx, "booking.deleted", map[string]any{"bookingId": booking.ID})
	return nil
}

func (s *bookingService) Get(ctx context.Context, actor Actor, bookingID string) (Booking, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if !ownsBooking(actor, booking) && !booking.AssignedTo(textutil.LowerKey(actor.Email)) {
		return Booking{}, fmt.Errorf("%w: booking belongs to another client", ErrForbidden)
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, query BookingListQuery) (Page[Booking], error) {
	if !query.Actor.IsAdmin() {
		query.Email = query.Actor.Email
	}
	return s.list(ctx, query)
}

func (s *bookingService) DecoratorBookings(ctx context.Context, query BookingListQuery) (Page[Booking], error) {
	query.Email = ""
	query.DecoratorEmail = query.Actor.Email
	return s.list(ctx, query)
}

func (s *bookingService) Today(ctx context.Context, actor Actor) ([]Booking, error) {
	start, end := domain.DayRange(s.now(), s.loc)
	decoratorEmail := ""
	if !actor.IsAdmin() {
		decoratorEmail = textutil.LowerKey(actor.Email)
		if decoratorEmail == "" {
			return nil, fmt.Errorf("%w: caller email is required", ErrForbidden)
		}
	}
	bookings, err := s.bookings.ListBetween(ctx, start, end, decoratorEmail)
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return bookings, nil
}

func (s *bookingService) list(ctx context.Context, query BookingListQuery) (Page[Booking], error) {
	filter := domain.BookingFilter{
		ServiceID:      strings.TrimSpace(query.ServiceID),
		UserEmail:      textutil.LowerKey(query.Email),
		DecoratorEmail: textutil.LowerKey(query.DecoratorEmail),
		Status:         domain.BookingStatus(strings.TrimSpace(query.Status)),
	}

	v := newValidator("booking")
	if filter.Status != "" {
		v.check(filter.Status.Valid(), "status", "must be pending, assigned, planning or completed")
	}
	if strings.TrimSpace(query.Date) != "" {
		start, end, err := domain.CalendarDayRange(query.Date, s.loc)
		v.check(err == nil, "date", "must be YYYY-MM-DD")
		filter.DateFrom, filter.DateTo = start, end
	}
	if err := v.err(); err != nil {
		return Page[Booking]{}, err
	}

	page, err := s.bookings.List(ctx, filter, query.Page)
	if err != nil {
		return Page[Booking]{}, mapRepositoryError(err, nil, nil)
	}
	if page.Items == nil {
		page.Items = []Booking{}
	}
	return page, nil
}

func (s *bookingService) find(ctx context.Context, bookingID string) (Booking, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return Booking{}, fmt.Errorf("%w: id is required", ErrBookingNotFound)
	}
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepositoryError(err, ErrBookingNotFound, nil)
	}
	return booking, nil
}

func ownsBooking(actor Actor, booking Booking) bool {
	return actor.IsAdmin() || (actor.Email != "" && textutil.LowerKey(actor.Email) == booking.UserEmail)
}

func decoratorIDFor(booking Booking, email string) string {
	for i, candidate := range booking.DecoratorEmails {
		if candidate == email && i < len(booking.DecoratorIDs) {
			return booking.DecoratorIDs[i]
		}
	}
	return domain.UserKey(email)
}

func normaliseDecoratorIDs(raw []string) ([]string, error) {
	v := newValidator("booking")
	ids := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			v.fail("decoratorIds", "must not contain empty ids")
			continue
		}
		if _, dup := seen[id]; dup {
			v.fail("decoratorIds", "must be unique")
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	v.check(len(raw) > 0, "decoratorIds", "must contain at least one decorator")
	v.check(len(raw) <= maxAssignedDecorators, "decoratorIds", "must contain at most 10 decorators")
	if err := v.err(); err != nil {
		return nil, err
	}
	return ids, nil
}
