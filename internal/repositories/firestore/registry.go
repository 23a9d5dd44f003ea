package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
	"github.com/luxeplan/api/internal/repositories"
)

// Registry wires every Firestore repository to one shared provider.
type Registry struct {
	provider   *pfirestore.Provider
	users      *UserRepository
	services   *ServiceRepository
	bookings   *BookingRepository
	payments   *PaymentRepository
	decorators *DecoratorRepository
	coupons    *CouponRepository
	health     repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repositories. extraChecks are appended to the Firestore readiness
// probe.
func NewRegistry(provider *pfirestore.Provider, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	reg := &Registry{provider: provider}

	var err error
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, err
	}
	if reg.services, err = NewServiceRepository(provider); err != nil {
		return nil, err
	}
	if reg.bookings, err = NewBookingRepository(provider); err != nil {
		return nil, err
	}
	if reg.payments, err = NewPaymentRepository(provider); err != nil {
		return nil, err
	}
	if reg.decorators, err = NewDecoratorRepository(provider); err != nil {
		return nil, err
	}
	if reg.coupons, err = NewCouponRepository(provider); err != nil {
		return nil, err
	}

	checks := append([]repositories.DependencyCheck{{Name: "firestore", Check: reg.pingFirestore}}, extraChecks...)
	if reg.health, err = repositories.NewProbeHealthRepository(checks); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Users() repositories.UserRepository           { return r.users }
func (r *Registry) Services() repositories.ServiceRepository     { return r.services }
func (r *Registry) Bookings() repositories.BookingRepository     { return r.bookings }
func (r *Registry) Payments() repositories.PaymentRepository     { return r.payments }
func (r *Registry) Decorators() repositories.DecoratorRepository { return r.decorators }
func (r *Registry) Coupons() repositories.CouponRepository       { return r.coupons }
func (r *Registry) Health() repositories.HealthRepository        { return r.health }

// pingFirestore reads a single document to prove the backend is reachable.
func (r *Registry) pingFirestore(ctx context.Context) error {
	ref, err := r.provider.Collection(ctx, servicesCollection)
	if err != nil {
		return err
	}
	iter := ref.Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !isIteratorDone(err) {
		return pfirestore.WrapError("health.ping", err)
	}
	return nil
}
