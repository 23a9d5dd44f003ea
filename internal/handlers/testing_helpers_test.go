package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/pagination"
)

const (
	clientToken    = "client-token"
	adminToken     = "admin-token"
	decoratorToken = "decorator-token"

	clientEmail    = "client@luxe.test"
	adminEmail     = "admin@luxe.test"
	decoratorEmail = "deco@luxe.test"
)

var testPages = pagination.Options{DefaultPageSize: 9, MaxPageSize: 100}

type tokenTable map[string]string

func (t tokenTable) VerifyIDToken(_ context.Context, token string) (*firebaseauth.Token, error) {
	email, ok := t[token]
	if !ok {
		return nil, auth.ErrTokenInvalid
	}
	return &firebaseauth.Token{UID: "uid-" + email, Claims: map[string]interface{}{"email": email}}, nil
}

type roleTable struct {
	roles      map[string]string
	decorators map[string]string
}

func (r roleTable) LookupRole(_ context.Context, email string) (string, error) {
	return r.roles[email], nil
}

func (r roleTable) LookupDecoratorID(_ context.Context, email string) (string, error) {
	return r.decorators[email], nil
}

func newTestAuthenticator() *auth.Authenticator {
	tokens := tokenTable{
		clientToken:    clientEmail,
		adminToken:     adminEmail,
		decoratorToken: decoratorEmail,
	}
	roles := roleTable{
		roles: map[string]string{
			adminEmail:     auth.RoleAdmin,
			decoratorEmail: auth.RoleDecorator,
		},
		decorators: map[string]string{decoratorEmail: "dec-1"},
	}
	return auth.NewAuthenticator(tokens, auth.WithRoleLookup(roles), auth.WithDecoratorLookup(roles))
}

func serve(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func newWebhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	req.Header.Set(stripeSignatureHeader, signature)
	return req
}

func serveRequest(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return body
}
