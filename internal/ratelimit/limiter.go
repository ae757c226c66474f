// Package ratelimit counts attempts per key in fixed Redis windows. The
// counter and its expiry are set by one Lua script, so concurrent hits
// from several server instances never lose an increment or leave a
// counter without a TTL.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments KEYS[1] and starts the window on the first hit.
// ARGV[1] is the window length in milliseconds.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Limiter is safe for concurrent use.
type Limiter struct {
	rdb    redis.Cmdable
	prefix string
}

func New(rdb redis.Cmdable, prefix string) *Limiter {
	return &Limiter{rdb: rdb, prefix: prefix}
}

func (l *Limiter) key(k string) string {
	if l.prefix == "" {
		return k
	}
	return l.prefix + ":" + k
}

// Hit records one attempt and returns the new count, which callers
// compare against their limit. Reading and incrementing in one step keeps
// concurrent attempts from all seeing the same count below the limit. The
// window starts at the first hit and is not extended by later ones.
func (l *Limiter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := hitScript.Run(ctx, l.rdb, []string{l.key(key)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("rate limit hit: %w", err)
	}
	return n, nil
}

// AvailableIn returns how long until the window for key resets.
func (l *Limiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	d, err := l.rdb.PTTL(ctx, l.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit ttl: %w", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
