// Package security authenticates bearer tokens and enforces the route access
// policy in front of the HTTP handlers.
package security

import (
	"context"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
)

type ctxKey struct{}

// WithAuthentication attaches an authenticated principal to ctx.
func WithAuthentication(ctx context.Context, a domain.AuthenticatedContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the authenticated principal of the request, if any.
func FromContext(ctx context.Context) (domain.AuthenticatedContext, bool) {
	a, ok := ctx.Value(ctxKey{}).(domain.AuthenticatedContext)
	return a, ok
}
