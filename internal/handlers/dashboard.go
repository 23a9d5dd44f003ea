package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/services"
)

// DashboardHandlers exposes reporting aggregates for admins and decorators.
type DashboardHandlers struct {
	authn   *auth.Authenticator
	reports services.ReportService
}

// NewDashboardHandlers constructs the stats handlers.
func NewDashboardHandlers(authn *auth.Authenticator, reports services.ReportService) *DashboardHandlers {
	return &DashboardHandlers{authn: authn, reports: reports}
}

// AdminRoutes registers /stats endpoints on the /admin group.
func (h *DashboardHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/stats", func(stats chi.Router) {
		stats.Use(h.authn.RequireAdmin())
		stats.Get("/bookings", h.bookingStats)
		stats.Get("/revenue", h.revenue)
		stats.Get("/demand", h.demand)
		stats.Get("/earnings", h.earnings)
	})
}

// DecoratorRoutes registers the decorator's own stats on the /decorator group.
func (h *DashboardHandlers) DecoratorRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.authn.RequireDecorator()).Get("/stats", h.decoratorStats)
}

func (h *DashboardHandlers) bookingStats(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		unavailable(w, r, "report")
		return
	}
	stats, err := h.reports.BookingStats(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"total": stats.Total, "byStatus": byStatus})
}

func (h *DashboardHandlers) revenue(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		unavailable(w, r, "report")
		return
	}
	stats, err := h.reports.Revenue(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	totals := make([]map[string]any, 0, len(stats.ByCurrency))
	for _, total := range stats.ByCurrency {
		totals = append(totals, map[string]any{"currency": total.Currency, "amount": total.Amount})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"payments": stats.Payments, "byCurrency": totals})
}

func (h *DashboardHandlers) demand(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		unavailable(w, r, "report")
		return
	}
	demand, err := h.reports.Demand(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]map[string]any, 0, len(demand))
	for _, entry := range demand {
		items = append(items, map[string]any{
			"serviceId":    entry.ServiceID,
			"service_name": entry.ServiceName,
			"bookings":     entry.Bookings,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"services": items})
}

func (h *DashboardHandlers) earnings(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		unavailable(w, r, "report")
		return
	}
	earnings, err := h.reports.Earnings(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]map[string]any, 0, len(earnings))
	for _, entry := range earnings {
		items = append(items, map[string]any{
			"decoratorId":    entry.DecoratorID,
			"decoratorName":  entry.DecoratorName,
			"decoratorEmail": entry.DecoratorEmail,
			"bookings":       entry.Bookings,
			"earnings":       entry.Earnings,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"decorators": items})
}

func (h *DashboardHandlers) decoratorStats(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		unavailable(w, r, "report")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	stats, err := h.reports.DecoratorStats(r.Context(), actor)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"completed": stats.Completed,
		"active":    stats.Active,
		"earnings":  stats.Earnings,
	})
}
