// Package identity resolves opaque bearer credentials into callers.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned for a missing, expired or rejected credential
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the caller a credential resolves to
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// HasRole reports whether the identity carries role
func (i *Identity) HasRole(role string) bool {
	return i != nil && role != "" && i.Role == role
}

// Authenticator validates a bearer credential
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// RoleLookup resolves the storefront role of an authenticated user
type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (string, error)
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, if any
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
