package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/services"
)

type upsertUserRequest struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	// Email is accepted for compatibility and ignored; the token email wins.
	Email string `json:"email"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UserHandlers exposes account registration and admin user management.
type UserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
	pages pagination.Options
}

// NewUserHandlers constructs the /users handlers.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService, pages pagination.Options) *UserHandlers {
	return &UserHandlers{authn: authn, users: users, pages: pages}
}

// Routes registers the /users endpoints.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.authn.RequireFirebaseAuth()).Post("/", h.upsert)
	r.With(h.authn.RequireFirebaseAuth()).Get("/role", h.role)
	r.With(h.authn.RequireAdmin()).Get("/", h.list)
	r.With(h.authn.RequireAdmin()).Patch("/{userID}/role", h.updateRole)
}

func (h *UserHandlers) upsert(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		unavailable(w, r, "user")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req upsertUserRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	user, created, err := h.users.Upsert(r.Context(), services.UpsertUserCommand{
		Email:       actor.Email,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]any{
		"user":    buildUserPayload(user),
		"created": created,
	})
}

func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		unavailable(w, r, "user")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, ok := pageFrom(w, r, h.pages)
	if !ok {
		return
	}

	result, err := h.users.List(r.Context(), services.UserListQuery{Actor: actor, Page: page})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]userPayload, 0, len(result.Items))
	for _, user := range result.Items {
		items = append(items, buildUserPayload(user))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"users": items, "count": result.Count})
}

func (h *UserHandlers) role(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		unavailable(w, r, "user")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	role, err := h.users.Role(r.Context(), actor.Email)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"role": role})
}

func (h *UserHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		unavailable(w, r, "user")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.users.UpdateRole(r.Context(), services.UpdateRoleCommand{
		Actor:  actor,
		UserID: strings.TrimSpace(chi.URLParam(r, "userID")),
		Role:   strings.TrimSpace(req.Role),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"user": buildUserPayload(user)})
}
