package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

const (
	redisTier = "redis"

	// invalidateAllToken is the sentinel published on the invalidation
	// channel when the whole cache must be dropped.
	invalidateAllToken = "*"
)

// RedisCacheConfig configures the shared Redis cache tier.
type RedisCacheConfig struct {
	// KeyPrefix namespaces cache keys, default "authz:perms:".
	KeyPrefix string

	// Channel is the pub/sub channel used to fan invalidations out to peer
	// replicas, default "authz:invalidate".
	Channel string

	// TTL for cached permission sets. Defaults to the in-memory tier's
	// default of 5 minutes.
	TTL time.Duration
}

// DefaultRedisCacheConfig returns the default Redis tier configuration.
func DefaultRedisCacheConfig() RedisCacheConfig {
	return RedisCacheConfig{
		KeyPrefix: "authz:perms:",
		Channel:   "authz:invalidate",
		TTL:       5 * time.Minute,
	}
}

// RedisCache is an optional shared cache tier for multi-replica deployments.
// It sits between the in-memory tier and the role table. Redis being down is
// a degradation, never a correctness problem: every operation falls through
// to the next tier and the failure is logged and counted.
type RedisCache struct {
	client  *redis.Client
	next    PermissionResolver
	local   *MemoryCache
	cfg     RedisCacheConfig
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRedisCache creates a Redis cache tier over the next resolver.
func NewRedisCache(client *redis.Client, next PermissionResolver, cfg RedisCacheConfig, logger *observability.Logger, metrics *observability.Metrics) *RedisCache {
	def := DefaultRedisCacheConfig()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.Channel == "" {
		cfg.Channel = def.Channel
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	return &RedisCache{
		client:  client,
		next:    next,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// SetLocalCache attaches the replica's in-memory tier so the invalidation
// listener can drop local entries when a peer broadcasts a role change.
func (c *RedisCache) SetLocalCache(local *MemoryCache) {
	c.local = local
}

func (c *RedisCache) key(userID string) string {
	return c.cfg.KeyPrefix + userID
}

// Resolve implements PermissionResolver.
func (c *RedisCache) Resolve(ctx context.Context, userID string, roles []string) (PermissionSet, error) {
	cached, err := c.client.Get(ctx, c.key(userID)).Result()
	switch {
	case err == nil:
		var patterns []string
		if jsonErr := json.Unmarshal([]byte(cached), &patterns); jsonErr == nil {
			c.metrics.CacheHitsTotal.WithLabelValues(redisTier).Inc()
			return NewPermissionSet(patterns...), nil
		}
		// Corrupt entry: treat as a miss and overwrite below.
		c.logger.WithField("user_id", userID).Warn("dropping corrupt cached permission set")
	case err == redis.Nil:
		c.metrics.CacheMissesTotal.WithLabelValues(redisTier).Inc()
	default:
		c.metrics.CacheErrorsTotal.WithLabelValues(redisTier, "get").Inc()
		c.logger.WithError(err).Warn("redis cache unavailable, resolving directly")
	}

	set, resolveErr := c.next.Resolve(ctx, userID, roles)
	if resolveErr != nil {
		return nil, resolveErr
	}

	if data, jsonErr := json.Marshal(set.Patterns()); jsonErr == nil {
		if setErr := c.client.Set(ctx, c.key(userID), data, c.cfg.TTL).Err(); setErr != nil {
			c.metrics.CacheErrorsTotal.WithLabelValues(redisTier, "set").Inc()
			c.logger.WithError(setErr).Debug("failed to store permission set in redis")
		}
	}
	return set, nil
}

// Invalidate implements PermissionResolver. The entry is deleted and the
// user ID broadcast so peer replicas drop their in-memory copies.
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(redisTier, "del").Inc()
		c.logger.WithError(err).Warn("failed to delete cached permission set from redis")
	}
	if err := c.client.Publish(ctx, c.cfg.Channel, userID).Err(); err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(redisTier, "publish").Inc()
		c.logger.WithError(err).Warn("failed to broadcast cache invalidation")
	}
	c.metrics.CacheInvalidationsTotal.WithLabelValues(redisTier, "user").Inc()
	return c.next.Invalidate(ctx, userID)
}

// InvalidateAll implements PermissionResolver. Keys are removed via SCAN to
// avoid blocking Redis, then the sentinel is broadcast.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.cfg.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.metrics.CacheErrorsTotal.WithLabelValues(redisTier, "del").Inc()
		}
	}
	if err := iter.Err(); err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(redisTier, "scan").Inc()
		c.logger.WithError(err).Warn("failed to scan cached permission sets for invalidation")
	}
	if err := c.client.Publish(ctx, c.cfg.Channel, invalidateAllToken).Err(); err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(redisTier, "publish").Inc()
		c.logger.WithError(err).Warn("failed to broadcast cache invalidation")
	}
	c.metrics.CacheInvalidationsTotal.WithLabelValues(redisTier, "all").Inc()
	return c.next.InvalidateAll(ctx)
}

// ListenInvalidations subscribes to the invalidation channel and drops local
// in-memory entries for user IDs broadcast by peer replicas. It blocks until
// the context is cancelled and is meant to run in its own goroutine.
func (c *RedisCache) ListenInvalidations(ctx context.Context) error {
	sub := c.client.Subscribe(ctx, c.cfg.Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("invalidation subscription on %q closed", c.cfg.Channel)
			}
			if c.local == nil {
				continue
			}
			if msg.Payload == invalidateAllToken {
				c.local.purgeLocal()
			} else {
				c.local.dropLocal(msg.Payload)
			}
		}
	}
}
