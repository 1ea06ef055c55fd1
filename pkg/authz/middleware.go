package authz

import (
	"context"
	"errors"
	"net/http"

	"github.com/boardwalk-dev/boardwalk/pkg/contextkeys"
)

// ResourceFunc extracts the resource descriptor an endpoint is about from
// the request, or returns nil for pure role checks.
type ResourceFunc func(r *http.Request) *Resource

// IdentityFromContext returns the verified identity placed into the context
// by the authentication layer.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(Identity)
	return identity, ok
}

// WithIdentity returns a context carrying the identity. The authentication
// middleware in front of the engine uses this; tests do too.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextkeys.IdentityKey, identity)
}

// Middleware guards HTTP endpoints with authorization checks.
type Middleware struct {
	engine *Engine
}

// NewMiddleware creates authorization middleware over the engine.
func NewMiddleware(engine *Engine) *Middleware {
	return &Middleware{engine: engine}
}

// RequirePermission wraps a handler so it only runs when the request
// identity holds the permission. When resourceFn is non-nil the rule chain
// evaluates its descriptor as well.
func (m *Middleware) RequirePermission(permission string, resourceFn ResourceFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			var resource *Resource
			if resourceFn != nil {
				resource = resourceFn(r)
			}

			allowed, _, err := m.engine.Authorize(r.Context(), identity, permission, resource)
			if err != nil {
				if errors.Is(err, ErrInvalidPermissionFormat) {
					http.Error(w, "invalid permission", http.StatusInternalServerError)
					return
				}
				http.Error(w, "authorization check failed", http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
