package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

var (
	// ErrDecoratorExists indicates the caller already submitted an application.
	ErrDecoratorExists = errors.New("decorator: application already exists")
	// ErrDecoratorHasActiveBookings indicates a rejection while assignments are still open.
	ErrDecoratorHasActiveBookings = errors.New("decorator: decorator has active bookings")
)

// DecoratorServiceDeps bundles collaborators required to construct the decorator service.
type DecoratorServiceDeps struct {
	Decorators repositories.DecoratorRepository
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type decoratorService struct {
	decorators repositories.DecoratorRepository
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

var _ DecoratorService = (*decoratorService)(nil)

// NewDecoratorService assembles the decorator application service.
func NewDecoratorService(deps DecoratorServiceDeps) (DecoratorService, error) {
	if deps.Decorators == nil {
		return nil, errors.New("decorator service: decorator repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &decoratorService{
		decorators: deps.Decorators,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *decoratorService) Apply(ctx context.Context, cmd ApplyDecoratorCommand) (Decorator, error) {
	email := textutil.LowerKey(cmd.Actor.Email)
	name := textutil.PlainText(cmd.Name, maxDisplayNameRunes)
	specialty := textutil.PlainText(cmd.Specialty, maxServiceFieldRunes)

	v := newValidator("decorator")
	v.check(email != "", "email", "is required")
	v.check(name != "", "name", "is required")
	v.check(specialty != "", "specialty", "is required")
	v.check(cmd.Experience >= 0, "experience", "must not be negative")
	if err := v.err(); err != nil {
		return Decorator{}, err
	}

	now := s.now()
	id := domain.UserKey(email)
	decorator := Decorator{
		ID:         id,
		UserID:     id,
		Email:      email,
		Name:       name,
		PhotoURL:   strings.TrimSpace(cmd.PhotoURL),
		Specialty:  specialty,
		Experience: cmd.Experience,
		Status:     domain.DecoratorPending,
		WorkStatus: domain.WorkAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.decorators.Insert(ctx, decorator); err != nil {
		return Decorator{}, mapRepositoryError(err, nil, ErrDecoratorExists)
	}
	s.logger(ctx, "decorator.applied", map[string]any{"decoratorId": id, "specialty": specialty})
	return decorator, nil
}

func (s *decoratorService) ListAccepted(ctx context.Context, query DecoratorListQuery) (Page[Decorator], error) {
	query.Status = string(domain.DecoratorAccepted)
	return s.list(ctx, query)
}

func (s *decoratorService) ListAll(ctx context.Context, query DecoratorListQuery) (Page[Decorator], error) {
	return s.list(ctx, query)
}

func (s *decoratorService) list(ctx context.Context, query DecoratorListQuery) (Page[Decorator], error) {
	filter := repositories.DecoratorListFilter{
		Status:     domain.DecoratorStatus(strings.TrimSpace(query.Status)),
		Specialty:  strings.TrimSpace(query.Specialty),
		WorkStatus: domain.WorkStatus(strings.TrimSpace(query.WorkStatus)),
		Page:       query.Page,
	}

	v := newValidator("decorator")
	switch filter.Status {
	case "", domain.DecoratorPending, domain.DecoratorAccepted, domain.DecoratorRejected:
	default:
		v.fail("status", "must be pending, accepted or rejected")
	}
	switch filter.WorkStatus {
	case "", domain.WorkAvailable, domain.WorkAssigned, domain.WorkWorking:
	default:
		v.fail("workStatus", "must be available, assigned or working")
	}
	if err := v.err(); err != nil {
		return Page[Decorator]{}, err
	}

	page, err := s.decorators.List(ctx, filter)
	if err != nil {
		return Page[Decorator]{}, mapRepositoryError(err, nil, nil)
	}
	if page.Items == nil {
		page.Items = []Decorator{}
	}
	return page, nil
}

func (s *decoratorService) Decide(ctx context.Context, cmd DecideDecoratorCommand) (Decorator, error) {
	id := strings.TrimSpace(cmd.DecoratorID)
	status := domain.DecoratorStatus(textutil.LowerKey(cmd.Status))

	v := newValidator("decorator")
	v.check(id != "", "decoratorId", "is required")
	v.check(status == domain.DecoratorAccepted || status == domain.DecoratorRejected, "status", "must be accepted or rejected")
	if err := v.err(); err != nil {
		return Decorator{}, err
	}

	decorator, err := s.decorators.Decide(ctx, repositories.DecoratorDecision{
		DecoratorID: id,
		Status:      status,
		Now:         s.now(),
		Check: func(_ domain.Decorator, activeBookings int) error {
			if status == domain.DecoratorRejected && activeBookings > 0 {
				return fmt.Errorf("%w: %d open assignments", ErrDecoratorHasActiveBookings, activeBookings)
			}
			return nil
		},
	})
	if err != nil {
		return Decorator{}, mapRepositoryError(err, ErrDecoratorNotFound, nil)
	}
	s.logger(ctx, "decorator.decided", map[string]any{"decoratorId": decorator.ID, "status": string(decorator.Status)})
	return decorator, nil
}

func (s *decoratorService) Me(ctx context.Context, actor Actor) (Decorator, error) {
	email := textutil.LowerKey(actor.Email)
	if email == "" {
		return Decorator{}, fmt.Errorf("%w: caller email is required", ErrDecoratorNotFound)
	}
	decorator, err := s.decorators.FindByID(ctx, domain.UserKey(email))
	if err != nil {
		return Decorator{}, mapRepositoryError(err, ErrDecoratorNotFound, nil)
	}
	return decorator, nil
}
