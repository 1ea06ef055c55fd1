// Package observability provides structured logging and Prometheus metrics
// for the Boardwalk authorization engine.
//
// Logging uses stdlib slog with a JSON handler. Metrics are registered on an
// explicit *prometheus.Registry so tests can construct isolated instances.
package observability
