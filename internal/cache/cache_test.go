package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStore_ExpiresOnRead(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	ms, err := NewMemoryStore(10, WithClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	ms.Set(ctx, "GET:/api/movies:", []byte(`[]`), 30*time.Second)

	data, ok := ms.Get(ctx, "GET:/api/movies:")
	require.True(t, ok)
	assert.Equal(t, `[]`, string(data))

	clock.Advance(31 * time.Second)
	assert.Equal(t, 1, ms.Len(), "no background sweep")

	_, ok = ms.Get(ctx, "GET:/api/movies:")
	assert.False(t, ok)
	assert.Equal(t, 0, ms.Len())
}

func TestMemoryStore_OverwriteRefreshesExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	ms, err := NewMemoryStore(10, WithClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	ms.Set(ctx, "k", []byte("old"), 10*time.Second)
	clock.Advance(8 * time.Second)
	ms.Set(ctx, "k", []byte("new"), 10*time.Second)
	clock.Advance(8 * time.Second)

	data, ok := ms.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "new", string(data))
}

func TestMemoryStore_ZeroTTLNotStored(t *testing.T) {
	ms, err := NewMemoryStore(10)
	require.NoError(t, err)

	ms.Set(context.Background(), "k", []byte("v"), 0)
	_, ok := ms.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ms, err := NewMemoryStore(2)
	require.NoError(t, err)
	ctx := context.Background()

	ms.Set(ctx, "a", []byte("1"), time.Minute)
	ms.Set(ctx, "b", []byte("2"), time.Minute)
	ms.Get(ctx, "a")
	ms.Set(ctx, "c", []byte("3"), time.Minute)

	_, ok := ms.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = ms.Get(ctx, "a")
	assert.True(t, ok)
}

func TestResolveKey(t *testing.T) {
	assert.Equal(t, "custom", ResolveKey("custom", false, "GET", "/api/movies", nil))
	assert.Equal(t, "", ResolveKey("", false, "GET", "/api/movies", nil))
	assert.Equal(t, "GET:/api/movies:", ResolveKey("", true, "", "/api/movies", nil))
	assert.Equal(t, "POST:/api/ratings:{\"score\":8}", ResolveKey("", true, "post", "/api/ratings", []byte(`{"score":8}`)))
}

func TestIsCacheable(t *testing.T) {
	assert.True(t, IsCacheable(""))
	assert.True(t, IsCacheable("get"))
	assert.False(t, IsCacheable("POST"))
	assert.False(t, IsCacheable("DELETE"))
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("MOVIEEXPLORER_TEST_REDIS")
	if url == "" {
		t.Skip("MOVIEEXPLORER_TEST_REDIS not set")
	}

	rs, err := NewRedisStore(RedisConfig{URL: url, Prefix: "movieexplorer:test:"}, zerolog.Nop())
	require.NoError(t, err)
	defer rs.Close()
	ctx := context.Background()

	rs.Set(ctx, "GET:/api/genres:", []byte(`[{"id":1,"name":"Drama"}]`), time.Second)
	data, ok := rs.Get(ctx, "GET:/api/genres:")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":1,"name":"Drama"}]`, string(data))

	_, ok = rs.Get(ctx, "GET:/api/missing:")
	assert.False(t, ok)
}
