package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestRedisCache(t *testing.T, client *redis.Client, roles map[string][]string) (*RedisCache, *countingResolver) {
	t.Helper()
	counting := &countingResolver{next: newTestTableResolver(t, roles)}
	cache := NewRedisCache(client, counting, RedisCacheConfig{TTL: time.Minute},
		observability.NewNopLogger(), newTestMetrics())
	return cache, counting
}

func TestRedisCacheResolveStoresAndHits(t *testing.T) {
	mr, client := newTestRedis(t)
	cache, counting := newTestRedisCache(t, client, map[string][]string{"MEMBER": {"task:read"}})

	ctx := context.Background()
	set, err := cache.Resolve(ctx, "U1", []string{"MEMBER"})
	require.NoError(t, err)
	assert.Equal(t, []string{"task:read"}, set.Patterns())
	assert.True(t, mr.Exists("authz:perms:U1"))

	set, err = cache.Resolve(ctx, "U1", []string{"MEMBER"})
	require.NoError(t, err)
	assert.Equal(t, []string{"task:read"}, set.Patterns())
	assert.Equal(t, 1, counting.count())
}

func TestRedisCacheCorruptEntryTreatedAsMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	cache, counting := newTestRedisCache(t, client, map[string][]string{"MEMBER": {"task:read"}})

	require.NoError(t, mr.Set("authz:perms:U1", "{not json"))

	set, err := cache.Resolve(context.Background(), "U1", []string{"MEMBER"})
	require.NoError(t, err)
	assert.Equal(t, []string{"task:read"}, set.Patterns())
	assert.Equal(t, 1, counting.count())
}

func TestRedisCacheUnavailableFallsThrough(t *testing.T) {
	mr, client := newTestRedis(t)
	cache, counting := newTestRedisCache(t, client, map[string][]string{"MEMBER": {"task:read"}})

	// Redis down: correctness is preserved via direct resolution on every
	// call, only performance degrades.
	mr.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		set, err := cache.Resolve(ctx, "U1", []string{"MEMBER"})
		require.NoError(t, err)
		assert.Equal(t, []string{"task:read"}, set.Patterns())
	}
	assert.Equal(t, 2, counting.count())
}

func TestRedisCacheInvalidateDeletesKey(t *testing.T) {
	mr, client := newTestRedis(t)
	cache, _ := newTestRedisCache(t, client, map[string][]string{"MEMBER": {"task:read"}})

	ctx := context.Background()
	_, err := cache.Resolve(ctx, "U1", []string{"MEMBER"})
	require.NoError(t, err)
	require.True(t, mr.Exists("authz:perms:U1"))

	require.NoError(t, cache.Invalidate(ctx, "U1"))
	assert.False(t, mr.Exists("authz:perms:U1"))
}

func TestRedisCacheInvalidateAllDeletesAllKeys(t *testing.T) {
	mr, client := newTestRedis(t)
	cache, _ := newTestRedisCache(t, client, map[string][]string{"MEMBER": {"task:read"}})

	ctx := context.Background()
	for _, user := range []string{"U1", "U2"} {
		_, err := cache.Resolve(ctx, user, []string{"MEMBER"})
		require.NoError(t, err)
	}

	require.NoError(t, cache.InvalidateAll(ctx))
	assert.False(t, mr.Exists("authz:perms:U1"))
	assert.False(t, mr.Exists("authz:perms:U2"))
}

func TestRedisCacheInvalidationListenerDropsLocalEntries(t *testing.T) {
	_, client := newTestRedis(t)
	cache, _ := newTestRedisCache(t, client, map[string][]string{"MEMBER": {"task:read"}})

	local := NewMemoryCache(cache, MemoryCacheConfig{TTL: time.Hour, Size: 16}, newTestMetrics())
	cache.SetLocalCache(local)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = cache.ListenInvalidations(ctx)
	}()

	// Warm the local tier, then simulate a peer broadcasting a change.
	// Pub/sub does not replay, so the publish is retried until the
	// listener's subscription is established and the entry drops.
	_, err := local.Resolve(ctx, "U1", []string{"MEMBER"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		if err := client.Publish(ctx, "authz:invalidate", "U1").Err(); err != nil {
			return false
		}
		return !local.entries.Contains("U1")
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
