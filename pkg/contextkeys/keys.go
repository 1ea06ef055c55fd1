// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains the verified authz.Identity for the request.
	// Set by: the authentication layer in front of the engine
	// Required by: authz middleware, decision handlers
	// Type: authz.Identity
	IdentityKey Key = "identity"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: HTTP middleware
	// Used by: logger, decision events
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains a request-scoped *observability.Logger
	// Set by: HTTP middleware
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)
