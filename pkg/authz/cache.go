package authz

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

// PermissionResolver resolves an identity's permission set. Implementations
// form a tier chain: in-memory cache -> optional Redis cache -> role table.
// Invalidate and InvalidateAll propagate down the chain so every tier drops
// its entries.
type PermissionResolver interface {
	// Resolve returns the permission set for the user. Implementations must
	// fail secure: on internal trouble they degrade to the next tier or to
	// an empty set, never to an error that could be read as a grant.
	Resolve(ctx context.Context, userID string, roles []string) (PermissionSet, error)

	// Invalidate removes the user's entry so the next Resolve recomputes.
	// The identity-management collaborator calls this synchronously on every
	// role change; the TTL remains the correctness backstop.
	Invalidate(ctx context.Context, userID string) error

	// InvalidateAll drops every entry. Called on role-table reload.
	InvalidateAll(ctx context.Context) error
}

// TableResolver is the bottom tier: it expands roles against the current
// role table. The table is swapped atomically on reload, so concurrent
// resolves see either the old or the new table, never a partial one.
type TableResolver struct {
	table   atomic.Pointer[RoleTable]
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewTableResolver creates a resolver over the given table.
func NewTableResolver(table *RoleTable, logger *observability.Logger, metrics *observability.Metrics) *TableResolver {
	r := &TableResolver{logger: logger, metrics: metrics}
	r.table.Store(table)
	return r
}

// Swap atomically replaces the role table and returns the previous one.
func (r *TableResolver) Swap(table *RoleTable) *RoleTable {
	return r.table.Swap(table)
}

// Table returns the current role table.
func (r *TableResolver) Table() *RoleTable {
	return r.table.Load()
}

// Resolve implements PermissionResolver. Unknown roles contribute nothing
// and are logged as warnings: a typo in a deployed role table must cause
// missing permissions, not an outage and not silent over-permission.
func (r *TableResolver) Resolve(_ context.Context, userID string, roles []string) (PermissionSet, error) {
	set, unknown := r.table.Load().Expand(roles)
	for _, role := range unknown {
		r.metrics.UnknownRolesTotal.Inc()
		r.logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"role":    role,
		}).Warn("identity references a role missing from the role table")
	}
	return set, nil
}

// Invalidate implements PermissionResolver. The table tier holds no state.
func (r *TableResolver) Invalidate(context.Context, string) error { return nil }

// InvalidateAll implements PermissionResolver.
func (r *TableResolver) InvalidateAll(context.Context) error { return nil }

const memoryTier = "memory"

// MemoryCache is the in-process cache tier, backed by an expirable LRU.
// Reads are cheap and contention on the backing map is limited to its own
// internal consistency; a racing miss for the same user recomputes the same
// pure value, so last-write-wins is fine. Purge on InvalidateAll is a brief
// bounded critical section.
type MemoryCache struct {
	next    PermissionResolver
	entries *expirable.LRU[string, PermissionSet]
	enabled bool
	metrics *observability.Metrics
}

// MemoryCacheConfig configures the in-memory cache tier.
type MemoryCacheConfig struct {
	// TTL bounds how long a revoked role can keep granting stale access.
	// Zero or negative disables caching entirely (every Resolve passes
	// through), which tests rely on.
	TTL time.Duration

	// Size is the maximum number of cached users.
	Size int
}

// DefaultMemoryCacheConfig returns the default cache configuration.
func DefaultMemoryCacheConfig() MemoryCacheConfig {
	return MemoryCacheConfig{
		TTL:  5 * time.Minute,
		Size: 4096,
	}
}

// NewMemoryCache creates an in-memory cache tier over the next resolver.
func NewMemoryCache(next PermissionResolver, cfg MemoryCacheConfig, metrics *observability.Metrics) *MemoryCache {
	if cfg.Size <= 0 {
		cfg.Size = DefaultMemoryCacheConfig().Size
	}
	c := &MemoryCache{
		next:    next,
		enabled: cfg.TTL > 0,
		metrics: metrics,
	}
	if c.enabled {
		c.entries = expirable.NewLRU[string, PermissionSet](cfg.Size, nil, cfg.TTL)
	}
	return c
}

// Resolve implements PermissionResolver.
func (c *MemoryCache) Resolve(ctx context.Context, userID string, roles []string) (PermissionSet, error) {
	if !c.enabled {
		return c.next.Resolve(ctx, userID, roles)
	}
	if set, ok := c.entries.Get(userID); ok {
		c.metrics.CacheHitsTotal.WithLabelValues(memoryTier).Inc()
		return set, nil
	}
	c.metrics.CacheMissesTotal.WithLabelValues(memoryTier).Inc()

	set, err := c.next.Resolve(ctx, userID, roles)
	if err != nil {
		return nil, err
	}
	// The entry is always replaced whole, never patched in place.
	c.entries.Add(userID, set)
	return set, nil
}

// Invalidate implements PermissionResolver.
func (c *MemoryCache) Invalidate(ctx context.Context, userID string) error {
	if c.enabled {
		c.entries.Remove(userID)
		c.metrics.CacheInvalidationsTotal.WithLabelValues(memoryTier, "user").Inc()
	}
	return c.next.Invalidate(ctx, userID)
}

// InvalidateAll implements PermissionResolver.
func (c *MemoryCache) InvalidateAll(ctx context.Context) error {
	if c.enabled {
		c.entries.Purge()
		c.metrics.CacheInvalidationsTotal.WithLabelValues(memoryTier, "all").Inc()
	}
	return c.next.InvalidateAll(ctx)
}

// dropLocal removes a user entry from this tier only, without propagating.
// Used by the Redis invalidation listener when a peer replica broadcasts a
// role change.
func (c *MemoryCache) dropLocal(userID string) {
	if c.enabled {
		c.entries.Remove(userID)
	}
}

// purgeLocal drops every entry from this tier only.
func (c *MemoryCache) purgeLocal() {
	if c.enabled {
		c.entries.Purge()
	}
}
