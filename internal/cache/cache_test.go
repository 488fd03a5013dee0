package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/sermon-catalog-go/internal/config"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_Sweep(t *testing.T) {
	c := NewMemoryCache(5 * time.Millisecond)
	defer c.Close()

	c.Set(context.Background(), "k", []byte("v"), time.Millisecond)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Delete(ctx, "a", "b")
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNew_Backends(t *testing.T) {
	c, err := New(&config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)

	c, err = New(&config.CacheConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	require.NoError(t, c.Close())

	mr := miniredis.RunT(t)
	c, err = New(&config.CacheConfig{Backend: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)
	require.NoError(t, c.Close())
}

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := newRedisCache(client)
	t.Cleanup(func() { c.Close() })
	return mr, c
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "count:abc", []byte("42"), time.Minute)
	assert.True(t, mr.Exists(KeyPrefix+"count:abc"))

	got, ok := c.Get(ctx, "count:abc")
	require.True(t, ok)
	assert.Equal(t, "42", string(got))
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestRedisCache_Delete(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Delete(ctx, "a")
	assert.False(t, mr.Exists(KeyPrefix+"a"))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
