package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/luxeplan/api/internal/domain"
	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/services"
)

type createBookingRequest struct {
	ServiceID string `json:"serviceId"`
	UserName  string `json:"userName"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Location  string `json:"location"`
	Notes     string `json:"notes"`
}

type updateBookingRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

type assignBookingRequest struct {
	DecoratorIDs []string `json:"decoratorIds"`
}

type bookingStatusRequest struct {
	Status string `json:"status"`
}

// BookingHandlers exposes the booking workflow to clients, admins and decorators.
type BookingHandlers struct {
	authn    *auth.Authenticator
	bookings services.BookingService
	pages    pagination.Options
}

// NewBookingHandlers constructs the booking handlers.
func NewBookingHandlers(authn *auth.Authenticator, bookings services.BookingService, pages pagination.Options) *BookingHandlers {
	return &BookingHandlers{authn: authn, bookings: bookings, pages: pages}
}

// Routes registers the /bookings endpoints.
func (h *BookingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.authn.RequireAdmin()).Get("/today", h.today)
	r.With(h.authn.RequireAdmin()).Patch("/{bookingID}/assign", h.assign)
	r.With(h.authn.RequireDecorator()).Patch("/{bookingID}/status", h.transition)

	r.Group(func(authed chi.Router) {
		authed.Use(h.authn.RequireFirebaseAuth())
		authed.Post("/", h.create)

		authed.Group(func(resolved chi.Router) {
			resolved.Use(h.authn.ResolveRole())
			resolved.Get("/", h.list)
			resolved.Get("/{bookingID}", h.get)
			resolved.Put("/{bookingID}", h.update)
			resolved.Delete("/{bookingID}", h.delete)
		})
	})
}

// DecoratorRoutes registers the decorator workspace endpoints under /decorator.
func (h *BookingHandlers) DecoratorRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.authn.RequireDecorator()).Get("/bookings", h.decoratorBookings)
	r.With(h.authn.RequireDecorator()).Get("/today", h.today)
}

func (h *BookingHandlers) create(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.bookings.Create(r.Context(), services.CreateBookingCommand{
		Actor:     actor,
		UserName:  req.UserName,
		ServiceID: req.ServiceID,
		Date:      req.Date,
		Time:      req.Time,
		Location:  req.Location,
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildBookingPayload(booking))
}

func (h *BookingHandlers) list(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	h.writeList(w, r, h.bookings.List)
}

func (h *BookingHandlers) decoratorBookings(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	h.writeList(w, r, h.bookings.DecoratorBookings)
}

func (h *BookingHandlers) writeList(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, query services.BookingListQuery) (services.Page[services.Booking], error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, ok := pageFrom(w, r, h.pages)
	if !ok {
		return
	}
	query := r.URL.Query()
	result, err := fetch(r.Context(), services.BookingListQuery{
		Actor:          actor,
		ServiceID:      query.Get("serviceId"),
		Date:           query.Get("date"),
		Email:          query.Get("email"),
		DecoratorEmail: query.Get("decoratorEmail"),
		Status:         query.Get("status"),
		Page:           page,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"bookings": buildBookingList(result.Items),
		"count":    result.Count,
	})
}

func (h *BookingHandlers) get(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	booking, err := h.bookings.Get(r.Context(), actor, chi.URLParam(r, "bookingID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBookingPayload(booking))
}

func (h *BookingHandlers) update(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	booking, err := h.bookings.Update(r.Context(), services.UpdateBookingCommand{
		Actor:     actor,
		BookingID: chi.URLParam(r, "bookingID"),
		Date:      req.Date,
		Time:      req.Time,
		Location:  req.Location,
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBookingPayload(booking))
}

func (h *BookingHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.bookings.Delete(r.Context(), actor, chi.URLParam(r, "bookingID")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandlers) assign(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	var req assignBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	booking, err := h.bookings.Assign(r.Context(), services.AssignBookingCommand{
		BookingID:    chi.URLParam(r, "bookingID"),
		DecoratorIDs: req.DecoratorIDs,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBookingPayload(booking))
}

func (h *BookingHandlers) transition(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req bookingStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	booking, err := h.bookings.Transition(r.Context(), services.TransitionBookingCommand{
		Actor:     actor,
		BookingID: chi.URLParam(r, "bookingID"),
		Status:    domain.BookingStatus(req.Status),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBookingPayload(booking))
}

func (h *BookingHandlers) today(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		unavailable(w, r, "booking")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	bookings, err := h.bookings.Today(r.Context(), actor)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"bookings": buildBookingList(bookings),
		"count":    len(bookings),
	})
}
