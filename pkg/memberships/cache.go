package memberships

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/shelf/pkg/observability"
)

// CachedResolver decorates a Resolver with a redis-backed result cache.
// The underlying resolution stays a pure function; this layer only
// memoizes it, and the mutation service invalidates per account after
// every committed change.
type CachedResolver struct {
	resolver *Resolver
	client   *redis.Client
	ttl      time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewCachedResolver creates a caching decorator around resolver
func NewCachedResolver(resolver *Resolver, client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *CachedResolver {
	return &CachedResolver{
		resolver: resolver,
		client:   client,
		ttl:      ttl,
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolve returns the cached effective permission, resolving and caching
// on a miss. Cache errors degrade to a direct resolve.
func (c *CachedResolver) Resolve(ctx context.Context, accountID, itemID string) (PermissionLevel, error) {
	key := cacheKey(accountID, itemID)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
		}
		return PermissionLevel(cached), nil
	}
	if err != redis.Nil {
		c.logger.WithError(err).Debug("permission cache read failed")
	}
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	level, err := c.resolver.Resolve(ctx, accountID, itemID)
	if err != nil {
		return PermissionNone, err
	}

	if err := c.client.Set(ctx, key, string(level), c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("permission cache write failed")
	}
	return level, nil
}

// InvalidateAccount drops every cached resolution for an account. Item
// mutations fan out across subtrees, so invalidation is per account rather
// than per item.
func (c *CachedResolver) InvalidateAccount(ctx context.Context, accountID string) error {
	pattern := cacheKey(accountID, "*")

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 256).Result()
		if err != nil {
			return fmt.Errorf("failed to scan permission cache: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete permission cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func cacheKey(accountID, itemID string) string {
	if accountID == AnonymousAccountID {
		accountID = "anon"
	}
	return fmt.Sprintf("perm:%s:%s", accountID, itemID)
}
