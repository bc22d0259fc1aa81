package cache

import (
	"context"
	"time"
)

// Store defines the interface for response body caching.
// Implementations: in-memory LRU, Redis, no-op.
type Store interface {
	// Get returns the stored body and true if the key is present and not expired.
	// Expired entries are removed on read.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a body under key until now+ttl, replacing any previous entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Close releases any resources held by the store
	Close() error
}
