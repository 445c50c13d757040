package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UnreadCache keeps per-user unread counters in Redis so the badge
// endpoints don't hit the database on every poll. Counters are adjusted
// alongside writes and reseeded from the database on a miss. A nil cache
// is valid and disables caching.
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUnreadCache(client *redis.Client, ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &UnreadCache{client: client, ttl: ttl}
}

func (c *UnreadCache) key(kind, userID string) string {
	return fmt.Sprintf("unread:%s:%s", kind, userID)
}

// Get returns the cached count and whether it was present.
func (c *UnreadCache) Get(ctx context.Context, kind, userID string) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	count, err := c.client.Get(ctx, c.key(kind, userID)).Int64()
	if err != nil {
		return 0, false
	}
	return count, true
}

func (c *UnreadCache) Set(ctx context.Context, kind, userID string, count int64) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Set(ctx, c.key(kind, userID), count, c.ttl)
}

func (c *UnreadCache) Incr(ctx context.Context, kind, userID string) {
	if c == nil || c.client == nil {
		return
	}
	key := c.key(kind, userID)
	if err := c.client.Incr(ctx, key).Err(); err == nil {
		c.client.Expire(ctx, key, c.ttl)
	}
}

func (c *UnreadCache) DecrBy(ctx context.Context, kind, userID string, n int64) {
	if c == nil || c.client == nil || n <= 0 {
		return
	}
	key := c.key(kind, userID)
	val, err := c.client.DecrBy(ctx, key, n).Result()
	if err == nil && val < 0 {
		c.client.Set(ctx, key, 0, c.ttl)
	}
}

// Invalidate drops the counter so the next read reseeds from the
// database.
func (c *UnreadCache) Invalidate(ctx context.Context, kind, userID string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, c.key(kind, userID))
}
