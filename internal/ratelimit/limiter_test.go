package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "login"), mr
}

func TestHit_CountsPerKey(t *testing.T) {
	l, mr := newLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		n, err := l.Hit(ctx, "10.0.0.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	n, err := l.Hit(ctx, "10.0.0.2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	v, err := mr.Get("login:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "6", v)
}

func TestHit_FixedWindow(t *testing.T) {
	l, mr := newLimiter(t)
	ctx := context.Background()

	_, err := l.Hit(ctx, "ip", time.Minute)
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	_, err = l.Hit(ctx, "ip", time.Minute)
	require.NoError(t, err)

	// the second hit must not push the window out
	left, err := l.AvailableIn(ctx, "ip")
	require.NoError(t, err)
	assert.InDelta(t, (20 * time.Second).Seconds(), left.Seconds(), 1)

	mr.FastForward(21 * time.Second)
	assert.False(t, mr.Exists("login:ip"))

	n, err := l.Hit(ctx, "ip", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHit_ConcurrentCountsAreDistinct(t *testing.T) {
	l, _ := newLimiter(t)
	ctx := context.Background()

	const workers, limit = 50, 5
	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		seen    sync.Map
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := l.Hit(ctx, "burst", time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			_, dup := seen.LoadOrStore(n, true)
			assert.False(t, dup, "count %d returned twice", n)
			if n <= limit {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())
}

func TestAvailableIn_NoWindow(t *testing.T) {
	l, _ := newLimiter(t)
	left, err := l.AvailableIn(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Zero(t, left)
}
