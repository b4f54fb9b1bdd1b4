package player

import (
	"context"
	"time"
)

// DefaultViewTTL bounds how stale a cached look view can get. Writes from
// the generation handlers invalidate eagerly; the TTL is the backstop.
const DefaultViewTTL = 30 * time.Second

// Cache is a best-effort JSON key-value store with TTL. A nil Cache
// disables view caching entirely.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
}

// ViewCacheKey names the cached look view of one location. The write-side
// repository decorators delete it whenever the underlying location or its
// layers change.
func ViewCacheKey(locationID string) string {
	return "world:view:" + locationID
}
