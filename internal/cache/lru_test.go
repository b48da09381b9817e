package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, 0)

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Get(ctx, "a")
	c.Set(ctx, "c", []byte("3"))

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used and should be evicted")
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_DefaultSize(t *testing.T) {
	c := NewLRU(0, time.Minute)
	c.Set(context.Background(), "a", []byte("1"))
	assert.Equal(t, 1, c.Len())
}

func TestLRUCache_SetWithTTL(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, time.Minute)

	c.SetWithTTL(ctx, "short", []byte("1"), 20*time.Millisecond)
	c.Set(ctx, "long", []byte("2"))

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "long")
	assert.True(t, ok)
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, 0)

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))

	c.Delete(ctx, "a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Clear(ctx)
	assert.Equal(t, 0, c.Len())
}
