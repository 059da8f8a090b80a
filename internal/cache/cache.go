// Package cache is a Redis read-through cache for application records.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"soloparent-workers/internal/common/config"
	"soloparent-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under <prefix>:application:<id>. A nil *Cache is a disabled cache:
// every lookup misses and every write is dropped.
type Cache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func New(rdb redis.Cmdable, cfg config.CacheConfig, log logger.Logger) *Cache {
	if rdb == nil || !cfg.Enabled {
		return nil
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "soloparent"
	}
	return &Cache{
		rdb:    rdb,
		ttl:    time.Duration(cfg.TTL) * time.Second,
		prefix: prefix,
		logger: log,
	}
}

func (c *Cache) key(id string) string {
	return c.prefix + ":application:" + id
}

// Get decodes the cached value for id into out and reports whether it was there.
func (c *Cache) Get(ctx context.Context, id string, out interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, id string, v interface{}) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops id; failures are logged since a stale entry expires with its TTL anyway.
func (c *Cache) Invalidate(ctx context.Context, id string) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", map[string]interface{}{
			"applicationId": id,
			"error":         err,
		})
	}
}

// Fetch returns the cached value for id, or calls load and caches its result. Cache errors are
// logged and fall through to load. hit reports whether load was skipped.
func Fetch[T any](ctx context.Context, c *Cache, id string, load func(context.Context) (T, error)) (v T, hit bool, err error) {
	if c != nil {
		found, err := c.Get(ctx, id, &v)
		if err != nil {
			c.logger.Warn("cache read failed", map[string]interface{}{"applicationId": id, "error": err})
		}
		if found {
			return v, true, nil
		}
	}

	v, err = load(ctx)
	if err != nil {
		return v, false, err
	}
	if err := c.Set(ctx, id, v); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"applicationId": id, "error": err})
	}
	return v, false, nil
}
