package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Authorization metrics
	DecisionsTotal    *prometheus.CounterVec
	DecisionDuration  prometheus.Histogram
	UnknownRolesTotal prometheus.Counter

	// Permission cache metrics
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
	CacheErrorsTotal        *prometheus.CounterVec

	// Role table metrics
	RoleTableReloadsTotal *prometheus.CounterVec

	// Audit emission metrics
	AuditEventsTotal       prometheus.Counter
	AuditEmitFailuresTotal prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,

		// Authorization metrics
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwalk_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"outcome", "reason"},
		),
		DecisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "boardwalk_authz_decision_duration_seconds",
				Help:    "Authorization decision duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
			},
		),
		UnknownRolesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "boardwalk_authz_unknown_roles_total",
				Help: "Total number of identity roles missing from the role table",
			},
		),

		// Permission cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwalk_authz_cache_hits_total",
				Help: "Total number of permission cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwalk_authz_cache_misses_total",
				Help: "Total number of permission cache misses",
			},
			[]string{"tier"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwalk_authz_cache_invalidations_total",
				Help: "Total number of permission cache invalidations",
			},
			[]string{"tier", "scope"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwalk_authz_cache_errors_total",
				Help: "Total number of cache backend errors (degraded to direct resolution)",
			},
			[]string{"tier", "operation"},
		),

		// Role table metrics
		RoleTableReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwalk_authz_role_table_reloads_total",
				Help: "Total number of role table reload attempts",
			},
			[]string{"status"},
		),

		// Audit emission metrics
		AuditEventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "boardwalk_audit_events_emitted_total",
				Help: "Total number of decision events emitted to the audit collaborator",
			},
		),
		AuditEmitFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "boardwalk_audit_emit_failures_total",
				Help: "Total number of decision events dropped because the audit sink was unavailable",
			},
		),

		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwalk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boardwalk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.DecisionsTotal,
		m.DecisionDuration,
		m.UnknownRolesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidationsTotal,
		m.CacheErrorsTotal,
		m.RoleTableReloadsTotal,
		m.AuditEventsTotal,
		m.AuditEmitFailuresTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
