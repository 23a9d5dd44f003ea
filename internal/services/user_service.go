package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

const maxDisplayNameRunes = 120

var (
	// ErrUserNotFound indicates the referenced user record does not exist.
	ErrUserNotFound = errors.New("user: user not found")
)

// UserServiceDeps bundles collaborators required to construct a user service.
type UserServiceDeps struct {
	Users      repositories.UserRepository
	Decorators repositories.DecoratorRepository
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	users      repositories.UserRepository
	decorators repositories.DecoratorRepository
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

var _ UserService = (*userService)(nil)

// NewUserService assembles the account service.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Decorators == nil {
		return nil, errors.New("user service: decorator repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &userService{
		users:      deps.Users,
		decorators: deps.Decorators,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *userService) Upsert(ctx context.Context, cmd UpsertUserCommand) (User, bool, error) {
	email := textutil.LowerKey(cmd.Email)
	v := newValidator("user")
	v.check(email != "", "email", "is required")
	if err := v.err(); err != nil {
		return User{}, false, err
	}

	user, created, err := s.users.Upsert(ctx, repositories.UserUpsert{
		Email:       email,
		DisplayName: textutil.PlainText(cmd.DisplayName, maxDisplayNameRunes),
		PhotoURL:    textutil.PlainText(cmd.PhotoURL, 0),
		Now:         s.now(),
	})
	if err != nil {
		return User{}, false, mapRepositoryError(err, nil, nil)
	}
	if created {
		s.logger(ctx, "user.registered", map[string]any{"userId": user.ID})
	}
	return user, created, nil
}

func (s *userService) List(ctx context.Context, query UserListQuery) (Page[User], error) {
	page, err := s.users.List(ctx, repositories.UserListFilter{
		ExcludeEmail: textutil.LowerKey(query.Actor.Email),
		Page:         query.Page,
	})
	if err != nil {
		return Page[User]{}, mapRepositoryError(err, nil, nil)
	}
	return page, nil
}

func (s *userService) Role(ctx context.Context, email string) (string, error) {
	return s.LookupRole(ctx, email)
}

func (s *userService) UpdateRole(ctx context.Context, cmd UpdateRoleCommand) (User, error) {
	v := newValidator("user")
	v.check(cmd.UserID != "", "userId", "is required")
	v.check(validRole(cmd.Role), "role", "must be one of client, decorator, admin")
	if err := v.err(); err != nil {
		return User{}, err
	}

	if cmd.Actor.Email != "" && cmd.UserID == domain.UserKey(cmd.Actor.Email) {
		return User{}, &ValidationError{Op: "user", Fields: map[string]string{"userId": "cannot change own role"}}
	}

	user, err := s.users.UpdateRole(ctx, cmd.UserID, cmd.Role)
	if err != nil {
		return User{}, mapRepositoryError(err, ErrUserNotFound, nil)
	}
	s.logger(ctx, "user.role_updated", map[string]any{"userId": user.ID, "role": user.Role})
	return user, nil
}

// LookupRole returns the stored role, defaulting to client when no record exists.
func (s *userService) LookupRole(ctx context.Context, email string) (string, error) {
	email = textutil.LowerKey(email)
	if email == "" {
		return domain.RoleClient, nil
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isRepositoryNotFound(err) {
			return domain.RoleClient, nil
		}
		return "", fmt.Errorf("user service: lookup role: %w", err)
	}
	if !validRole(user.Role) {
		return domain.RoleClient, nil
	}
	return user.Role, nil
}

// LookupDecoratorID returns the decorator profile ID when the email owns an accepted profile.
func (s *userService) LookupDecoratorID(ctx context.Context, email string) (string, error) {
	email = textutil.LowerKey(email)
	if email == "" {
		return "", nil
	}
	decorator, err := s.decorators.FindByID(ctx, domain.UserKey(email))
	if err != nil {
		if isRepositoryNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("user service: lookup decorator: %w", err)
	}
	if decorator.Status != domain.DecoratorAccepted {
		return "", nil
	}
	return decorator.ID, nil
}

func validRole(role string) bool {
	switch role {
	case domain.RoleClient, domain.RoleDecorator, domain.RoleAdmin:
		return true
	default:
		return false
	}
}
