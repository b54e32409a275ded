package stores

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a cross-process resolution cache backed by Redis. It lets
// several application instances share the per-role permission and rule
// snapshots and see each other's invalidations. Redis errors degrade to cache
// misses.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.client.Set(ctx, key, value, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, key)
}
