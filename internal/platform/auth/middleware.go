package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/luxeplan/api/internal/platform/httpx"
	"github.com/luxeplan/api/internal/platform/requestctx"
)

const (
	defaultEmailClaim    = "email"
	defaultVerifyTimeout = 5 * time.Second

	unauthorizedMessage = "Unauthorized Access!"
	verificationFailure = "Internal Server Error during verification"
)

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// RoleLookup resolves the stored role for an email. An empty role means no user record.
type RoleLookup interface {
	LookupRole(ctx context.Context, email string) (string, error)
}

// DecoratorLookup resolves the decorator profile ID for an email. An empty ID means the
// email has no decorator profile.
type DecoratorLookup interface {
	LookupDecoratorID(ctx context.Context, email string) (string, error)
}

// Authenticator wires Firebase token verification and role checks into HTTP middleware.
type Authenticator struct {
	verifier   TokenVerifier
	roles      RoleLookup
	decorators DecoratorLookup
	timeout    time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleLookup enables role gates backed by stored user records.
func WithRoleLookup(lookup RoleLookup) Option {
	return func(a *Authenticator) {
		a.roles = lookup
	}
}

// WithDecoratorLookup lets the decorator gate attach the caller's decorator ID.
func WithDecoratorLookup(lookup DecoratorLookup) Option {
	return func(a *Authenticator) {
		a.decorators = lookup
	}
}

// WithVerificationTimeout sets the timeout used when verifying tokens and loading roles.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs a Firebase Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		timeout:  defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth verifies the Authorization bearer token and binds the principal email
// to the request context.
func (a *Authenticator) RequireFirebaseAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(r.Context(), w, "missing_token")
				return
			}
			if a == nil || a.verifier == nil {
				writeUnauthorized(r.Context(), w, "verifier_unavailable")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
			cancel()
			if err != nil {
				writeUnauthorized(r.Context(), w, verificationReason(err))
				return
			}

			email := NormalizeEmail(claimAsString(token.Claims, defaultEmailClaim))
			if email == "" {
				writeUnauthorized(r.Context(), w, "missing_email")
				return
			}

			identity := &Identity{UID: token.UID, Email: email, Role: RoleClient, token: token}
			ctx = WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin verifies the caller and admits only users whose stored role is admin.
func (a *Authenticator) RequireAdmin() func(http.Handler) http.Handler {
	return a.chain(a.requireRole(RoleAdmin, "Admin only actions"))
}

// RequireDecorator verifies the caller and admits only users whose stored role is decorator.
// The caller's decorator ID is attached to the identity.
func (a *Authenticator) RequireDecorator() func(http.Handler) http.Handler {
	return a.chain(a.requireRole(RoleDecorator, "Decorators only actions"))
}

// ResolveRole loads the stored role for the identity in ctx without enforcing it. Routes that
// behave differently for admins use it after RequireFirebaseAuth.
func (a *Authenticator) ResolveRole() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeUnauthorized(r.Context(), w, "missing_identity")
				return
			}
			if err := a.loadRole(r.Context(), identity); err != nil {
				writeVerificationFailure(r.Context(), w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) chain(gate func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	verify := a.RequireFirebaseAuth()
	return func(next http.Handler) http.Handler {
		return verify(gate(next))
	}
}

func (a *Authenticator) requireRole(role, deniedMessage string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, ok := IdentityFromContext(ctx)
			if !ok {
				writeUnauthorized(ctx, w, "missing_identity")
				return
			}
			if err := a.loadRole(ctx, identity); err != nil {
				writeVerificationFailure(ctx, w, err)
				return
			}
			if identity.Role != role {
				httpx.WriteError(ctx, w, httpx.Forbidden(deniedMessage).WithDetails(map[string]any{"role": identity.Role}))
				return
			}
			if role == RoleDecorator && a.decorators != nil {
				lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
				decoratorID, err := a.decorators.LookupDecoratorID(lookupCtx, identity.Email)
				cancel()
				if err != nil {
					writeVerificationFailure(ctx, w, err)
					return
				}
				identity.DecoratorID = decoratorID
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) loadRole(ctx context.Context, identity *Identity) error {
	if a == nil || a.roles == nil {
		return errors.New("auth: role lookup not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	role, err := a.roles.LookupRole(ctx, identity.Email)
	if err != nil {
		return err
	}
	if role == "" {
		role = RoleClient
	}
	identity.Role = role
	return nil
}

func verificationReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		return "invalid_token"
	case errors.Is(err, context.DeadlineExceeded):
		return "verification_timeout"
	default:
		return "verification_failed"
	}
}

func writeUnauthorized(ctx context.Context, w http.ResponseWriter, reason string) {
	httpx.WriteError(ctx, w, httpx.Unauthorized(unauthorizedMessage).WithDetails(map[string]any{"reason": reason}))
}

func writeVerificationFailure(ctx context.Context, w http.ResponseWriter, err error) {
	requestctx.Logger(ctx).Error("auth: role verification failed", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", verificationFailure, http.StatusInternalServerError))
}

func claimAsString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
