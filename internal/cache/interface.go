package cache

import (
	"context"
	"time"
)

// Cache defines the interface for cache backends. Values are opaque bytes;
// Store layers typed feed and post access on top.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}
