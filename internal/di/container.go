package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxeplan/api/internal/payments"
	"github.com/luxeplan/api/internal/platform/config"
	"github.com/luxeplan/api/internal/repositories"
	"github.com/luxeplan/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Users      services.UserService
	Catalog    services.CatalogService
	Bookings   services.BookingService
	Decorators services.DecoratorService
	Payments   services.PaymentService
	Coupons    services.CouponService
	Reports    services.ReportService
	System     services.SystemService
}

// Runtime carries collaborators backed by external systems. Nil members disable the features
// that depend on them.
type Runtime struct {
	Notifier        services.Notifier
	Uploads         services.UploadSigner
	PaymentProvider payments.Provider
	Metrics         services.WorkflowMetrics
	Build           services.BuildInfo
	Logger          func(ctx context.Context, event string, fields map[string]any)
	Clock           func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Dispatcher   *services.NotificationDispatcher
}

// NewContainer constructs the runtime dependencies. Production wiring provides Firestore
// repositories, while tests can supply in-memory registries.
func NewContainer(cfg config.Config, reg repositories.Registry, rt Runtime) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if rt.Clock == nil {
		rt.Clock = time.Now
	}

	c := &Container{Config: cfg, Repositories: reg}

	if rt.Notifier != nil {
		dispatcher, err := services.NewNotificationDispatcher(services.NotificationDispatcherDeps{
			Notifier: rt.Notifier,
			Timeout:  cfg.Notifications.Timeout,
			Clock:    rt.Clock,
			Logger:   rt.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build notification dispatcher: %w", err)
		}
		c.Dispatcher = dispatcher
	}

	svc, err := buildServices(cfg, reg, rt, c.Dispatcher)
	if err != nil {
		return nil, err
	}
	c.Services = svc
	return c, nil
}

// Close waits for in-flight notifications and releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.Dispatcher != nil {
		c.Dispatcher.Wait()
	}
	if c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, rt Runtime, dispatcher *services.NotificationDispatcher) (Services, error) {
	var svc Services
	var err error

	if svc.Users, err = services.NewUserService(services.UserServiceDeps{
		Users:      reg.Users(),
		Decorators: reg.Decorators(),
		Clock:      rt.Clock,
		Logger:     rt.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}

	if svc.Catalog, err = services.NewCatalogService(services.CatalogServiceDeps{
		Services:        reg.Services(),
		Uploads:         rt.Uploads,
		AssetsBucket:    cfg.Storage.AssetsBucket,
		UploadTTL:       cfg.Storage.UploadTTL,
		DefaultCurrency: cfg.Payments.Currency,
		Clock:           rt.Clock,
		Logger:          rt.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}

	if svc.Bookings, err = services.NewBookingService(services.BookingServiceDeps{
		Bookings:      reg.Bookings(),
		Services:      reg.Services(),
		Notifications: dispatcher,
		Metrics:       rt.Metrics,
		Location:      cfg.Booking.Location,
		Clock:         rt.Clock,
		Logger:        rt.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build booking service: %w", err)
	}

	if svc.Decorators, err = services.NewDecoratorService(services.DecoratorServiceDeps{
		Decorators: reg.Decorators(),
		Clock:      rt.Clock,
		Logger:     rt.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build decorator service: %w", err)
	}

	if svc.Coupons, err = services.NewCouponService(services.CouponServiceDeps{
		Coupons:  reg.Coupons(),
		Location: cfg.Booking.Location,
		Clock:    rt.Clock,
		Logger:   rt.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}

	if rt.PaymentProvider != nil {
		if svc.Payments, err = services.NewPaymentService(services.PaymentServiceDeps{
			Bookings:        reg.Bookings(),
			Payments:        reg.Payments(),
			Coupons:         svc.Coupons,
			Provider:        rt.PaymentProvider,
			Metrics:         rt.Metrics,
			DefaultCurrency: cfg.Payments.Currency,
			SuccessURL:      cfg.Payments.SuccessURL,
			CancelURL:       cfg.Payments.CancelURL,
			Clock:           rt.Clock,
			Logger:          rt.Logger,
		}); err != nil {
			return Services{}, fmt.Errorf("build payment service: %w", err)
		}
	}

	if svc.Reports, err = services.NewReportService(services.ReportServiceDeps{
		Bookings: reg.Bookings(),
		Payments: reg.Payments(),
	}); err != nil {
		return Services{}, fmt.Errorf("build report service: %w", err)
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		if svc.System, err = services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            rt.Clock,
			Build:            rt.Build,
		}); err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
	}

	return svc, nil
}
