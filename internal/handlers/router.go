package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/luxeplan/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	users      RouteRegistrar
	services   RouteRegistrar
	bookings   RouteRegistrar
	decorators RouteRegistrar
	payments   RouteRegistrar
	coupons    RouteRegistrar
	workspace  []RouteRegistrar
	admin      []RouteRegistrar
	webhooks   RouteRegistrar

	webhookMiddlewares []func(http.Handler) http.Handler
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and the API route groups. Groups
// without a registrar answer 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.middlewares = append(cfg.middlewares, middleware.Timeout(defaultTimeout))

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route("/webhooks", func(group chi.Router) {
		for _, mw := range cfg.webhookMiddlewares {
			if mw != nil {
				group.Use(mw)
			}
		}
		if cfg.webhooks != nil {
			cfg.webhooks(group)
			return
		}
		registerNotImplemented(group, "webhooks")
	})

	r.Route(cfg.basePath, func(api chi.Router) {
		mount := func(path string, name string, registrars ...RouteRegistrar) {
			api.Route(path, func(group chi.Router) {
				mounted := false
				for _, registrar := range registrars {
					if registrar != nil {
						registrar(group)
						mounted = true
					}
				}
				if !mounted {
					registerNotImplemented(group, name)
				}
			})
		}

		mount("/users", "users", cfg.users)
		mount("/services", "services", cfg.services)
		mount("/bookings", "bookings", cfg.bookings)
		mount("/decorators", "decorators", cfg.decorators)
		mount("/decorator", "decorator", cfg.workspace...)
		mount("/payments", "payments", cfg.payments)
		mount("/coupons", "coupons", cfg.coupons)
		mount("/admin", "admin", cfg.admin...)
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router. They run before the
// request timeout is applied.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithUserRoutes configures the registrar for /users.
func WithUserRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.users = reg
	}
}

// WithServiceRoutes configures the registrar for the catalog under /services.
func WithServiceRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.services = reg
	}
}

// WithBookingRoutes configures the registrar for /bookings.
func WithBookingRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.bookings = reg
	}
}

// WithDecoratorRoutes configures the registrar for /decorators.
func WithDecoratorRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.decorators = reg
	}
}

// WithDecoratorWorkspaceRoutes adds registrars to the /decorator group used by decorators to
// manage their own assignments.
func WithDecoratorWorkspaceRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.workspace = append(cfg.workspace, regs...)
	}
}

// WithPaymentRoutes configures the registrar for /payments.
func WithPaymentRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.payments = reg
	}
}

// WithCouponRoutes configures the registrar for /coupons.
func WithCouponRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.coupons = reg
	}
}

// WithAdminRoutes adds registrars to the /admin group.
func WithAdminRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.admin = append(cfg.admin, regs...)
	}
}

// WithWebhookRoutes configures the registrar for /webhooks. Webhooks live outside the API
// prefix and carry no user authentication.
func WithWebhookRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.webhooks = reg
	}
}

// WithWebhookMiddlewares configures middlewares applied to the /webhooks group.
func WithWebhookMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.webhookMiddlewares = append(cfg.webhookMiddlewares, mw...)
	}
}

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
