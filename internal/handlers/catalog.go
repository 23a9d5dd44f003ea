package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/httpx"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/services"
)

type serviceRequest struct {
	Name        string  `json:"service_name"`
	Category    string  `json:"service_category"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
	Currency    string  `json:"currency"`
	Unit        string  `json:"unit"`
	Image       string  `json:"image"`
	Ratings     float64 `json:"ratings"`
}

type uploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// CatalogHandlers exposes the service catalog.
type CatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	pages   pagination.Options
}

// NewCatalogHandlers constructs the /services handlers.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService, pages pagination.Options) *CatalogHandlers {
	return &CatalogHandlers{authn: authn, catalog: catalog, pages: pages}
}

// Routes registers the /services endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Get("/{serviceID}", h.get)

	r.Group(func(admin chi.Router) {
		admin.Use(h.authn.RequireAdmin())
		admin.Post("/", h.create)
		admin.Post("/uploads", h.uploadURL)
		admin.Put("/{serviceID}", h.update)
		admin.Delete("/{serviceID}", h.delete)
	})
}

func (h *CatalogHandlers) list(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		unavailable(w, r, "catalog")
		return
	}
	page, ok := pageFrom(w, r, h.pages)
	if !ok {
		return
	}
	query := r.URL.Query()
	minPrice, err := parsePrice(query.Get("minPrice"))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.BadRequest("minPrice must be a number"))
		return
	}
	maxPrice, err := parsePrice(query.Get("maxPrice"))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.BadRequest("maxPrice must be a number"))
		return
	}

	result, err := h.catalog.List(r.Context(), services.CatalogQuery{
		Search:   query.Get("search"),
		Category: query.Get("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     query.Get("sort"),
		Page:     page,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]servicePayload, 0, len(result.Items))
	for _, service := range result.Items {
		items = append(items, buildServicePayload(service))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"services": items, "count": result.Count})
}

func (h *CatalogHandlers) get(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		unavailable(w, r, "catalog")
		return
	}
	service, err := h.catalog.Get(r.Context(), chi.URLParam(r, "serviceID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildServicePayload(service))
}

func (h *CatalogHandlers) create(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		unavailable(w, r, "catalog")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req serviceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	service, err := h.catalog.Create(r.Context(), req.command(actor))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildServicePayload(service))
}

func (h *CatalogHandlers) update(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		unavailable(w, r, "catalog")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req serviceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	service, err := h.catalog.Update(r.Context(), chi.URLParam(r, "serviceID"), req.command(actor))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildServicePayload(service))
}

func (h *CatalogHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		unavailable(w, r, "catalog")
		return
	}
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "serviceID")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) uploadURL(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		unavailable(w, r, "catalog")
		return
	}
	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ticket, err := h.catalog.UploadURL(r.Context(), services.UploadCommand{FileName: req.FileName, ContentType: req.ContentType})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"url":        ticket.URL,
		"method":     ticket.Method,
		"headers":    ticket.Headers,
		"objectPath": ticket.ObjectPath,
		"publicUrl":  ticket.PublicURL,
		"expiresAt":  formatTime(ticket.ExpiresAt),
	})
}

func (req serviceRequest) command(actor services.Actor) services.ServiceCommand {
	return services.ServiceCommand{
		Actor:       actor,
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Cost:        req.Cost,
		Currency:    req.Currency,
		Unit:        req.Unit,
		Image:       req.Image,
		Ratings:     req.Ratings,
	}
}

func parsePrice(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
