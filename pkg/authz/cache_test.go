package authz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(nil)
}

func newTestTableResolver(t *testing.T, roles map[string][]string) *TableResolver {
	t.Helper()
	table, err := NewRoleTable(roles)
	require.NoError(t, err)
	return NewTableResolver(table, observability.NewNopLogger(), newTestMetrics())
}

// countingResolver wraps a resolver and counts Resolve calls.
type countingResolver struct {
	next  PermissionResolver
	mu    sync.Mutex
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, userID string, roles []string) (PermissionSet, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.Resolve(ctx, userID, roles)
}

func (c *countingResolver) Invalidate(ctx context.Context, userID string) error {
	return c.next.Invalidate(ctx, userID)
}

func (c *countingResolver) InvalidateAll(ctx context.Context) error {
	return c.next.InvalidateAll(ctx)
}

func (c *countingResolver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestTableResolverUnknownRole(t *testing.T) {
	resolver := newTestTableResolver(t, map[string][]string{"MEMBER": {"task:read"}})

	set, err := resolver.Resolve(context.Background(), "U1", []string{"GHOST"})
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestTableResolverSwap(t *testing.T) {
	resolver := newTestTableResolver(t, map[string][]string{"MEMBER": {"task:read"}})

	newTable, err := NewRoleTable(map[string][]string{"MEMBER": {"task:read", "task:update"}})
	require.NoError(t, err)
	resolver.Swap(newTable)

	set, err := resolver.Resolve(context.Background(), "U1", []string{"MEMBER"})
	require.NoError(t, err)
	_, ok := set.Match("task:update")
	assert.True(t, ok)
}

func TestMemoryCacheHit(t *testing.T) {
	table := newTestTableResolver(t, map[string][]string{"MEMBER": {"task:read"}})
	counting := &countingResolver{next: table}
	cache := NewMemoryCache(counting, MemoryCacheConfig{TTL: time.Minute, Size: 16}, newTestMetrics())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		set, err := cache.Resolve(ctx, "U1", []string{"MEMBER"})
		require.NoError(t, err)
		assert.Equal(t, []string{"task:read"}, set.Patterns())
	}
	assert.Equal(t, 1, counting.count())
}

func TestMemoryCacheExpiry(t *testing.T) {
	table := newTestTableResolver(t, map[string][]string{"MEMBER": {"task:read"}})
	counting := &countingResolver{next: table}
	cache := NewMemoryCache(counting, MemoryCacheConfig{TTL: 20 * time.Millisecond, Size: 16}, newTestMetrics())

	ctx := context.Background()
	_, err := cache.Resolve(ctx, "U1", []string{"MEMBER"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = cache.Resolve(ctx, "U1", []string{"MEMBER"})
	require.NoError(t, err)
	assert.Equal(t, 2, counting.count())
}

func TestMemoryCacheDisabled(t *testing.T) {
	table := newTestTableResolver(t, map[string][]string{"MEMBER": {"task:read"}})
	counting := &countingResolver{next: table}
	cache := NewMemoryCache(counting, MemoryCacheConfig{TTL: 0}, newTestMetrics())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := cache.Resolve(ctx, "U1", []string{"MEMBER"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, counting.count())
}

func TestMemoryCacheInvalidateReflectsRoleChange(t *testing.T) {
	table := newTestTableResolver(t, map[string][]string{
		"MEMBER": {"task:read"},
		"ADMIN":  {"*:*"},
	})
	cache := NewMemoryCache(table, MemoryCacheConfig{TTL: time.Hour, Size: 16}, newTestMetrics())

	ctx := context.Background()
	set, err := cache.Resolve(ctx, "U1", []string{"MEMBER"})
	require.NoError(t, err)
	_, ok := set.Match("project:delete")
	require.False(t, ok)

	// Role change upstream, then an explicit invalidation: the next
	// Resolve must see the new roles, no stale read may survive.
	require.NoError(t, cache.Invalidate(ctx, "U1"))

	set, err = cache.Resolve(ctx, "U1", []string{"ADMIN"})
	require.NoError(t, err)
	_, ok = set.Match("project:delete")
	assert.True(t, ok)
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	table := newTestTableResolver(t, map[string][]string{"MEMBER": {"task:read"}})
	counting := &countingResolver{next: table}
	cache := NewMemoryCache(counting, MemoryCacheConfig{TTL: time.Hour, Size: 16}, newTestMetrics())

	ctx := context.Background()
	for _, user := range []string{"U1", "U2", "U3"} {
		_, err := cache.Resolve(ctx, user, []string{"MEMBER"})
		require.NoError(t, err)
	}
	require.Equal(t, 3, counting.count())

	require.NoError(t, cache.InvalidateAll(ctx))

	for _, user := range []string{"U1", "U2", "U3"} {
		_, err := cache.Resolve(ctx, user, []string{"MEMBER"})
		require.NoError(t, err)
	}
	assert.Equal(t, 6, counting.count())
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	table := newTestTableResolver(t, map[string][]string{"MEMBER": {"task:read"}})
	cache := NewMemoryCache(table, MemoryCacheConfig{TTL: time.Minute, Size: 128}, newTestMetrics())

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch j % 10 {
				case 7:
					_ = cache.Invalidate(ctx, "U1")
				case 9:
					_ = cache.InvalidateAll(ctx)
				default:
					set, err := cache.Resolve(ctx, "U1", []string{"MEMBER"})
					if err != nil {
						t.Error(err)
						return
					}
					if _, ok := set.Match("task:read"); !ok {
						t.Error("resolved set lost task:read")
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
