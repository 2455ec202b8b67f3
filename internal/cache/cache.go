// Package cache provides the query-embedding accelerator cache consulted by
// the hybrid retrieval service (SPEC_FULL.md domain stack). It generalizes
// the teacher's go-enhanced-rag-service/pkg/cache.Cache interface and
// KeyHash pattern to a single Redis-backed implementation; misses and
// connection failures are never correctness dependencies, only latency
// accelerators.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the minimal interface the retrieval service depends on.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache is a Cache backed by a Redis server, per the redis_url config
// key. An empty redis_url means caching is disabled at the call site.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }

// KeyHash derives a stable cache key from an embedding model name and a
// query string, matching the teacher's sha256-based KeyHash helper.
func KeyHash(embeddingModel, query string) string {
	sum := sha256.Sum256([]byte(embeddingModel + "\x00" + query))
	return "embed:" + hex.EncodeToString(sum[:])
}
