package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/luxeplan/api/internal/services"
)

type stubCatalogService struct {
	services.CatalogService

	query   *services.CatalogQuery
	command *services.ServiceCommand
	upload  *services.UploadCommand
	ticket  services.UploadTicket
	service services.Service
	err     error
}

func (s *stubCatalogService) List(_ context.Context, query services.CatalogQuery) (services.Page[services.Service], error) {
	s.query = &query
	return services.Page[services.Service]{Items: []services.Service{s.service}, Count: 1}, s.err
}

func (s *stubCatalogService) Get(_ context.Context, serviceID string) (services.Service, error) {
	if serviceID != s.service.ID {
		return services.Service{}, services.ErrServiceNotFound
	}
	return s.service, s.err
}

func (s *stubCatalogService) Create(_ context.Context, cmd services.ServiceCommand) (services.Service, error) {
	s.command = &cmd
	return s.service, s.err
}

func (s *stubCatalogService) UploadURL(_ context.Context, cmd services.UploadCommand) (services.UploadTicket, error) {
	s.upload = &cmd
	return s.ticket, s.err
}

func catalogRouter(svc services.CatalogService) http.Handler {
	return NewRouter(WithServiceRoutes(NewCatalogHandlers(newTestAuthenticator(), svc, testPages).Routes))
}

func TestCatalogListIsPublicAndParsesFilters(t *testing.T) {
	svc := &stubCatalogService{service: services.Service{ID: "svc-1", Name: "Garden Party", Category: "outdoor", Cost: 350}}
	rr := serve(t, catalogRouter(svc), http.MethodGet, "/api/v1/services?search=garden&category=outdoor&minPrice=100&maxPrice=500&sort=cost_asc", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	q := svc.query
	if q == nil || q.Search != "garden" || q.Category != "outdoor" || q.Sort != "cost_asc" {
		t.Fatalf("unexpected query %+v", q)
	}
	if q.MinPrice == nil || *q.MinPrice != 100 || q.MaxPrice == nil || *q.MaxPrice != 500 {
		t.Fatalf("unexpected price bounds %+v", q)
	}
	if q.Page.Size != 9 {
		t.Fatalf("expected default page size 9, got %d", q.Page.Size)
	}
	items, ok := decodeJSONBody(t, rr)["services"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one service, got %v", rr.Body.String())
	}
	if items[0].(map[string]any)["service_name"] != "Garden Party" {
		t.Fatalf("unexpected service payload %v", items[0])
	}
}

func TestCatalogListRejectsBadPrice(t *testing.T) {
	svc := &stubCatalogService{}
	rr := serve(t, catalogRouter(svc), http.MethodGet, "/api/v1/services?minPrice=cheap", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if svc.query != nil {
		t.Fatalf("service must not be queried")
	}
}

func TestCatalogCreateRequiresAdmin(t *testing.T) {
	svc := &stubCatalogService{service: services.Service{ID: "svc-1"}}
	router := catalogRouter(svc)
	body := `{"service_name":"Garden Party","service_category":"outdoor","cost":350,"unit":"per event"}`

	if rr := serve(t, router, http.MethodPost, "/api/v1/services", decoratorToken, body); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for decorator, got %d", rr.Code)
	}
	rr := serve(t, router, http.MethodPost, "/api/v1/services", adminToken, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.command == nil || svc.command.Name != "Garden Party" || svc.command.Actor.Email != adminEmail {
		t.Fatalf("unexpected command %+v", svc.command)
	}
}

func TestCatalogUploadURL(t *testing.T) {
	expires := time.Date(2025, 5, 10, 12, 15, 0, 0, time.UTC)
	svc := &stubCatalogService{ticket: services.UploadTicket{
		URL:        "https://storage.googleapis.com/luxe-media/services/svc-01/hero.png?X-Goog-Signature=abc",
		Method:     http.MethodPut,
		Headers:    map[string]string{"Content-Type": "image/png"},
		ObjectPath: "services/svc-01/hero.png",
		ExpiresAt:  expires,
	}}
	rr := serve(t, catalogRouter(svc), http.MethodPost, "/api/v1/services/uploads", adminToken, `{"fileName":"hero.png","contentType":"image/png"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["objectPath"] != "services/svc-01/hero.png" || body["method"] != http.MethodPut {
		t.Fatalf("unexpected upload body %v", body)
	}
	if svc.upload == nil || svc.upload.ContentType != "image/png" {
		t.Fatalf("unexpected upload command %+v", svc.upload)
	}

	svc.err = services.ErrUploadsDisabled
	rr = serve(t, catalogRouter(svc), http.MethodPost, "/api/v1/services/uploads", adminToken, `{"fileName":"hero.png","contentType":"image/png"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when uploads are disabled, got %d", rr.Code)
	}
}

func TestCatalogGetUnknownService(t *testing.T) {
	rr := serve(t, catalogRouter(&stubCatalogService{}), http.MethodGet, "/api/v1/services/missing", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
