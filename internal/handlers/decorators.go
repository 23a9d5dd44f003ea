package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/services"
)

type applyDecoratorRequest struct {
	Name       string `json:"name"`
	PhotoURL   string `json:"photoURL"`
	Specialty  string `json:"specialty"`
	Experience int    `json:"experience"`
}

type decideDecoratorRequest struct {
	Status string `json:"status"`
}

// DecoratorHandlers exposes decorator applications and the public directory.
type DecoratorHandlers struct {
	authn      *auth.Authenticator
	decorators services.DecoratorService
	pages      pagination.Options
}

// NewDecoratorHandlers constructs the decorator handlers.
func NewDecoratorHandlers(authn *auth.Authenticator, decorators services.DecoratorService, pages pagination.Options) *DecoratorHandlers {
	return &DecoratorHandlers{authn: authn, decorators: decorators, pages: pages}
}

// Routes registers the /decorators endpoints.
func (h *DecoratorHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listAccepted)
	r.With(h.authn.RequireFirebaseAuth()).Post("/", h.apply)
	r.With(h.authn.RequireFirebaseAuth()).Get("/me", h.me)
	r.With(h.authn.RequireAdmin()).Patch("/{decoratorID}/status", h.decide)
}

// AdminRoutes registers the admin application listing under /admin.
func (h *DecoratorHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.authn.RequireAdmin()).Get("/decorators", h.listAll)
}

func (h *DecoratorHandlers) apply(w http.ResponseWriter, r *http.Request) {
	if h.decorators == nil {
		unavailable(w, r, "decorator")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req applyDecoratorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	decorator, err := h.decorators.Apply(r.Context(), services.ApplyDecoratorCommand{
		Actor:      actor,
		Name:       req.Name,
		PhotoURL:   req.PhotoURL,
		Specialty:  req.Specialty,
		Experience: req.Experience,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildDecoratorPayload(decorator))
}

func (h *DecoratorHandlers) listAccepted(w http.ResponseWriter, r *http.Request) {
	if h.decorators == nil {
		unavailable(w, r, "decorator")
		return
	}
	h.writeList(w, r, false)
}

func (h *DecoratorHandlers) listAll(w http.ResponseWriter, r *http.Request) {
	if h.decorators == nil {
		unavailable(w, r, "decorator")
		return
	}
	h.writeList(w, r, true)
}

func (h *DecoratorHandlers) writeList(w http.ResponseWriter, r *http.Request, all bool) {
	page, ok := pageFrom(w, r, h.pages)
	if !ok {
		return
	}
	values := r.URL.Query()
	query := services.DecoratorListQuery{
		Status:     values.Get("status"),
		Specialty:  values.Get("specialty"),
		WorkStatus: values.Get("workStatus"),
		Page:       page,
	}

	var (
		result services.Page[services.Decorator]
		err    error
	)
	if all {
		result, err = h.decorators.ListAll(r.Context(), query)
	} else {
		result, err = h.decorators.ListAccepted(r.Context(), query)
	}
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]decoratorPayload, 0, len(result.Items))
	for _, d := range result.Items {
		items = append(items, buildDecoratorPayload(d))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"decorators": items, "count": result.Count})
}

func (h *DecoratorHandlers) decide(w http.ResponseWriter, r *http.Request) {
	if h.decorators == nil {
		unavailable(w, r, "decorator")
		return
	}
	var req decideDecoratorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	decorator, err := h.decorators.Decide(r.Context(), services.DecideDecoratorCommand{
		DecoratorID: chi.URLParam(r, "decoratorID"),
		Status:      req.Status,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDecoratorPayload(decorator))
}

func (h *DecoratorHandlers) me(w http.ResponseWriter, r *http.Request) {
	if h.decorators == nil {
		unavailable(w, r, "decorator")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	decorator, err := h.decorators.Me(r.Context(), actor)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDecoratorPayload(decorator))
}
