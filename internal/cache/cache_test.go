package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test"), mr
}

func TestRemember_ReadThrough(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (entry, error) {
		calls++
		return entry{Name: "a", N: calls}, nil
	}

	v, hit, err := Remember(ctx, c, c.Key("user", 1), time.Hour, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, entry{Name: "a", N: 1}, v)

	v, hit, err = Remember(ctx, c, c.Key("user", 1), time.Hour, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, v.N)
	assert.Equal(t, 1, calls)

	assert.Equal(t, time.Hour, mr.TTL("test:user:1"))

	mr.FastForward(time.Hour + time.Second)
	v, hit, err = Remember(ctx, c, c.Key("user", 1), time.Hour, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, v.N)
}

func TestRemember_LoaderErrorNotCached(t *testing.T) {
	c, mr := newCache(t)
	boom := errors.New("boom")

	_, _, err := Remember(context.Background(), c, "k", time.Minute, func(context.Context) (entry, error) {
		return entry{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestRemember_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, mr.Set("k", "{not json"))

	v, hit, err := Remember(context.Background(), c, "k", time.Minute, func(context.Context) (entry, error) {
		return entry{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", v.Name)
}

func TestForget(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("b", "1"))

	require.NoError(t, c.Forget(context.Background(), "a", "b", "missing"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	require.NoError(t, c.Forget(context.Background()))
}
