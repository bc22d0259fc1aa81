package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheEntry represents a cached body with expiration
type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-memory LRU store with per-entry TTL.
// Expiry is checked lazily on read; there is no background sweep.
type MemoryStore struct {
	cache *lru.Cache[string, *cacheEntry]
	now   func() time.Time
	mu    sync.Mutex
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, used by tests to simulate TTL expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(ms *MemoryStore) {
		ms.now = now
	}
}

// NewMemoryStore creates a new in-memory store holding at most size entries
func NewMemoryStore(size int, opts ...MemoryOption) (*MemoryStore, error) {
	c, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, err
	}

	ms := &MemoryStore{
		cache: c,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms, nil
}

// Get retrieves a value from the store
func (ms *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, ok := ms.cache.Get(key)
	if !ok {
		return nil, false
	}

	if !ms.now().Before(entry.expiresAt) {
		ms.cache.Remove(key)
		return nil, false
	}

	return entry.data, true
}

// Set stores a value in the store
func (ms *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	entry := &cacheEntry{
		data:      value,
		expiresAt: ms.now().Add(ttl),
	}

	ms.mu.Lock()
	ms.cache.Add(key, entry)
	ms.mu.Unlock()
}

// Len returns the number of entries, including expired ones not yet read
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.cache.Len()
}

// Close drops all entries
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	ms.cache.Purge()
	ms.mu.Unlock()
	return nil
}

// NoopStore is a store that does nothing (used when caching is disabled)
type NoopStore struct{}

// NewNoopStore creates a new no-op store
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

// Get always returns not found
func (ns *NoopStore) Get(context.Context, string) ([]byte, bool) {
	return nil, false
}

// Set does nothing
func (ns *NoopStore) Set(context.Context, string, []byte, time.Duration) {}

// Close does nothing
func (ns *NoopStore) Close() error { return nil }
