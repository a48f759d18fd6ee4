// Package requestctx carries the authenticated caller through request contexts.
package requestctx

import "context"

// principalContextKey is the context key for authenticated caller identity.
type principalContextKey struct{}

// Principal identifies the authenticated caller of a request.
type Principal struct {
	UserID   string
	Username string
}

// WithPrincipal stores the authenticated caller in context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the caller stored in context and whether one
// was present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || principal.UserID == "" {
		return Principal{}, false
	}
	return principal, true
}

// UserIDFromContext returns the caller's user identifier, or empty.
func UserIDFromContext(ctx context.Context) string {
	principal, _ := PrincipalFromContext(ctx)
	return principal.UserID
}
