package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the invalidation capability handed to the checkout coordinator.
// Tag groups keys so a whole family (e.g. every cached quote) can be
// dropped after a commit changes catalog state.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Tag(ctx context.Context, tag string, keys ...string) error
	InvalidateTag(ctx context.Context, tag string) error
}
