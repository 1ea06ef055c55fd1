package authz

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

// Config holds engine configuration.
type Config struct {
	// EventBufferSize is the capacity of the decision-event channel feeding
	// the audit collaborator. When the buffer is full events are dropped
	// and counted; emission must never add latency to a decision.
	EventBufferSize int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		EventBufferSize: 1024,
	}
}

// Engine is the authorization service facade. It orchestrates the permission
// cache, the pattern matcher, the rule chain, and decision-event emission.
// All shared state (the role table pointer, the cache tiers) is safe for
// concurrent use; Authorize itself performs no I/O.
type Engine struct {
	table    *TableResolver
	resolver PermissionResolver
	chain    *Chain
	events   chan DecisionEvent
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	// closeMu guards events against a send racing Close; emit holds the
	// read side, so Authorize calls never serialize against each other.
	closeMu sync.RWMutex
	closed  bool
}

// NewEngine creates an engine over the given table resolver and cache tier
// chain. The resolver chain must bottom out at the same TableResolver so a
// role-table reload is observed by cache misses.
func NewEngine(table *TableResolver, resolver PermissionResolver, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = DefaultConfig().EventBufferSize
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &Engine{
		table:    table,
		resolver: resolver,
		chain:    DefaultChain(),
		events:   make(chan DecisionEvent, cfg.EventBufferSize),
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// NewStandardEngine wires the common single-replica setup: a table resolver
// under an in-memory cache.
func NewStandardEngine(roleTable *RoleTable, cacheCfg MemoryCacheConfig, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	table := NewTableResolver(roleTable, logger, metrics)
	cache := NewMemoryCache(table, cacheCfg, metrics)
	return NewEngine(table, cache, cfg, logger, metrics)
}

// Events exposes the decision-event stream for the audit collaborator. The
// engine guarantees an emission attempt per decision, not delivery.
func (e *Engine) Events() <-chan DecisionEvent {
	return e.events
}

// Authorize decides whether the identity may exercise the permission,
// optionally constrained by a resource descriptor.
//
// Only a malformed permission string is reported as an error; it is a caller
// bug and must be distinguishable from a legitimate denial. Every other
// ambiguous condition (unknown role, cache trouble, missing resource fields)
// degrades toward denial, never toward access.
func (e *Engine) Authorize(ctx context.Context, identity Identity, permission string, resource *Resource) (allowed bool, reason string, err error) {
	start := e.now()

	resourceType, action, err := ParsePermission(permission)
	if err != nil {
		return false, "", err
	}

	perms, resolveErr := e.resolver.Resolve(ctx, identity.UserID, identity.Roles)
	if resolveErr != nil {
		// Fail secure: decide with an empty set rather than surfacing an
		// error a caller might misread as transient-and-retryable access.
		e.logger.WithError(resolveErr).WithField("user_id", identity.UserID).
			Error("permission resolution failed, denying")
		perms = PermissionSet{}
	}

	var matchedRule string
	switch {
	case !permissionGranted(perms, permission):
		// The rule chain never runs for a role lacking the base permission,
		// so an unauthorized caller learns nothing about the resource.
		allowed, reason = false, ReasonPermissionNotGranted
	case resource == nil:
		allowed, reason = true, ReasonRolePermissionGranted
	default:
		decision, rule := e.chain.Evaluate(EvaluationContext{
			Identity:     identity,
			Resource:     resource,
			ResourceType: resourceType,
			Action:       action,
			Permissions:  perms,
		})
		if decision == Deny {
			allowed, reason, matchedRule = false, DeniedReason(rule), rule
		} else {
			allowed, reason = true, ReasonRuleChainPassed
		}
	}

	e.metrics.DecisionDuration.Observe(e.now().Sub(start).Seconds())
	e.metrics.DecisionsTotal.WithLabelValues(outcomeLabel(allowed), reason).Inc()
	e.emit(identity, permission, resource, allowed, matchedRule, reason)

	return allowed, reason, nil
}

func permissionGranted(perms PermissionSet, permission string) bool {
	_, ok := perms.Match(permission)
	return ok
}

func outcomeLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

// emit hands a decision event to the audit channel without ever blocking:
// a full buffer increments the local failure counter and the event is
// dropped. Audit emission can never delay or veto a decision.
func (e *Engine) emit(identity Identity, permission string, resource *Resource, allowed bool, matchedRule, reason string) {
	event := DecisionEvent{
		ID:          uuid.NewString(),
		UserID:      identity.UserID,
		TenantID:    identity.TenantID,
		Roles:       identity.Roles,
		Permission:  permission,
		Allowed:     allowed,
		MatchedRule: matchedRule,
		Reason:      reason,
		Timestamp:   e.now().UTC(),
	}
	if resource != nil {
		event.ResourceRef = resource.Ref
	}

	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		e.metrics.AuditEmitFailuresTotal.Inc()
		return
	}

	select {
	case e.events <- event:
		e.metrics.AuditEventsTotal.Inc()
	default:
		e.metrics.AuditEmitFailuresTotal.Inc()
		e.logger.WithField("event_id", event.ID).Warn("audit event buffer full, dropping decision event")
	}
}

// ReloadRoleTable atomically swaps the role table and invalidates every
// cache tier. In-flight Authorize calls see either the old or the new table.
func (e *Engine) ReloadRoleTable(ctx context.Context, table *RoleTable) error {
	e.table.Swap(table)
	if err := e.resolver.InvalidateAll(ctx); err != nil {
		e.metrics.RoleTableReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	e.metrics.RoleTableReloadsTotal.WithLabelValues("success").Inc()
	e.logger.WithField("roles", len(table.Roles())).Info("role table reloaded, permission caches invalidated")
	return nil
}

// InvalidateUser drops the user's cached permission set across every tier.
// Identity management calls this on role changes as a freshness
// optimization; the cache TTL remains the correctness guarantee.
func (e *Engine) InvalidateUser(ctx context.Context, userID string) error {
	return e.resolver.Invalidate(ctx, userID)
}

// Close stops the decision-event stream. Safe to call more than once and
// concurrently with Authorize; decisions made after Close still succeed,
// their events are counted as dropped.
func (e *Engine) Close() {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}
