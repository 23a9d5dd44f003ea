package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/luxeplan/api/internal/domain"
)

func newTestDecoratorService(t *testing.T, repo *memoryDecoratorRepo) DecoratorService {
	t.Helper()
	svc, err := NewDecoratorService(DecoratorServiceDeps{
		Decorators: repo,
		Clock:      fixedClock(time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewDecoratorService: %v", err)
	}
	return svc
}

func TestDecoratorServiceApply(t *testing.T) {
	repo := newMemoryDecoratorRepo()
	svc := newTestDecoratorService(t, repo)
	ctx := context.Background()
	actor := Actor{Email: "Maya@Example.com"}

	decorator, err := svc.Apply(ctx, ApplyDecoratorCommand{Actor: actor, Name: "Maya", Specialty: "Floral", Experience: 4})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if decorator.ID != domain.UserKey("maya@example.com") || decorator.Email != "maya@example.com" {
		t.Fatalf("unexpected identity %+v", decorator)
	}
	if decorator.Status != domain.DecoratorPending || decorator.WorkStatus != domain.WorkAvailable {
		t.Fatalf("expected pending/available, got %s/%s", decorator.Status, decorator.WorkStatus)
	}

	if _, err := svc.Apply(ctx, ApplyDecoratorCommand{Actor: actor, Name: "Maya", Specialty: "Floral"}); !errors.Is(err, ErrDecoratorExists) {
		t.Fatalf("expected ErrDecoratorExists, got %v", err)
	}
	if _, err := svc.Apply(ctx, ApplyDecoratorCommand{Actor: Actor{Email: "x@example.com"}, Experience: -1}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	me, err := svc.Me(ctx, Actor{Email: "maya@example.com"})
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.ID != decorator.ID {
		t.Fatalf("expected own profile, got %+v", me)
	}
	if _, err := svc.Me(ctx, Actor{Email: "nobody@example.com"}); !errors.Is(err, ErrDecoratorNotFound) {
		t.Fatalf("expected ErrDecoratorNotFound, got %v", err)
	}
}

func TestDecoratorServiceDecide(t *testing.T) {
	repo := newMemoryDecoratorRepo(decoratorNew, decoratorOne)
	repo.active[decoratorOne.ID] = 2
	svc := newTestDecoratorService(t, repo)
	ctx := context.Background()

	accepted, err := svc.Decide(ctx, DecideDecoratorCommand{DecoratorID: decoratorNew.ID, Status: "Accepted"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if accepted.Status != domain.DecoratorAccepted || repo.roles[decoratorNew.ID] != domain.RoleDecorator {
		t.Fatalf("expected accepted decorator with promoted role, got %+v role=%q", accepted, repo.roles[decoratorNew.ID])
	}

	if _, err := svc.Decide(ctx, DecideDecoratorCommand{DecoratorID: decoratorOne.ID, Status: "rejected"}); !errors.Is(err, ErrDecoratorHasActiveBookings) {
		t.Fatalf("expected ErrDecoratorHasActiveBookings, got %v", err)
	}
	if repo.store[decoratorOne.ID].Status != domain.DecoratorAccepted {
		t.Fatalf("rejected decision must not modify the decorator")
	}
	if _, err := svc.Decide(ctx, DecideDecoratorCommand{DecoratorID: decoratorOne.ID, Status: "pending"}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Decide(ctx, DecideDecoratorCommand{DecoratorID: "ghost", Status: "accepted"}); !errors.Is(err, ErrDecoratorNotFound) {
		t.Fatalf("expected ErrDecoratorNotFound, got %v", err)
	}
}

func TestDecoratorServiceListing(t *testing.T) {
	repo := newMemoryDecoratorRepo(decoratorOne, decoratorTwo, decoratorNew)
	svc := newTestDecoratorService(t, repo)
	ctx := context.Background()

	public, err := svc.ListAccepted(ctx, DecoratorListQuery{Status: "pending"})
	if err != nil {
		t.Fatalf("ListAccepted: %v", err)
	}
	if public.Count != 2 {
		t.Fatalf("expected only accepted decorators, got %d", public.Count)
	}

	all, err := svc.ListAll(ctx, DecoratorListQuery{})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if all.Count != 3 {
		t.Fatalf("expected all decorators, got %d", all.Count)
	}

	if _, err := svc.ListAll(ctx, DecoratorListQuery{Status: "retired", WorkStatus: "sleeping"}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
