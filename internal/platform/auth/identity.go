package auth

import (
	"context"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/luxeplan/api/internal/platform/textutil"
)

// Role constants mirror the role field stored on user records.
const (
	RoleClient    = "client"
	RoleDecorator = "decorator"
	RoleAdmin     = "admin"
)

// Identity captures the authenticated principal. Role and DecoratorID are only populated once
// a role gate has run for the request.
type Identity struct {
	UID         string
	Email       string
	Role        string
	DecoratorID string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token associated with this identity.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// IsAdmin reports whether a role gate resolved the identity as an administrator.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleClient, RoleDecorator, RoleAdmin:
		return true
	default:
		return false
	}
}

// NormalizeEmail lower-cases and trims an email address for comparisons and lookups.
func NormalizeEmail(email string) string {
	return textutil.LowerKey(email)
}

type contextKey string

const identityContextKey contextKey = "github.com/luxeplan/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
