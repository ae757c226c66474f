// Package cache provides a JSON read-through cache on top of Redis. It
// backs the permission and profile caches so every server instance sees
// the same entries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache namespaces keys under a prefix.
type Cache struct {
	rdb    redis.Cmdable
	prefix string
}

func New(rdb redis.Cmdable, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix}
}

// Key joins the prefix and the parts with ':'.
func (c *Cache) Key(parts ...any) string {
	segs := make([]string, 0, len(parts)+1)
	if c.prefix != "" {
		segs = append(segs, c.prefix)
	}
	for _, p := range parts {
		segs = append(segs, fmt.Sprint(p))
	}
	return strings.Join(segs, ":")
}

// Remember returns the cached value under key or, on a miss, computes it
// with fn and stores it for ttl. hit reports whether the value came from
// Redis. A corrupt entry is treated as a miss and overwritten.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (v T, hit bool, err error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			return v, true, nil
		}
	case !errors.Is(err, redis.Nil):
		return v, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	v, err = fn(ctx)
	if err != nil {
		return v, false, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return v, false, fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return v, false, fmt.Errorf("cache set %s: %w", key, err)
	}
	return v, false, nil
}

// Forget deletes keys; missing keys are not an error.
func (c *Cache) Forget(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache forget: %w", err)
	}
	return nil
}
