package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := NewRedis(RedisConfig{Addr: mr.Addr(), Prefix: "test:"}, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewRedis_Unreachable(t *testing.T) {
	_, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"}, time.Minute)
	assert.Error(t, err)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Minute)

	c.Set(ctx, "key1", []byte("value1"))

	got, ok := c.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, "value1", string(got))
	assert.True(t, mr.Exists("test:key1"), "key should be stored under the prefix")
}

func TestRedisCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Minute)

	c.SetWithTTL(ctx, "key1", []byte("value1"), time.Second)
	mr.FastForward(2 * time.Second)

	_, ok := c.Get(ctx, "key1")
	assert.False(t, ok)
}

func TestRedisCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, 0)

	require.NoError(t, mr.Set("other:key", "untouched"))
	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Set(ctx, "c", []byte("3"))

	c.Delete(ctx, "a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Clear(ctx)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	assert.True(t, mr.Exists("other:key"), "Clear() must only remove prefixed keys")
}
