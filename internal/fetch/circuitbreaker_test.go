package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_Transitions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		RecoveryTimeout:  10 * time.Second,
		HalfOpenRequests: 2,
	}, zerolog.Nop())
	cb.now = clock.Now

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, "closed", cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, "open", cb.State())
	assert.False(t, cb.Allow())

	clock.Advance(10 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, "half-open", cb.State())

	cb.RecordFailure()
	assert.Equal(t, "open", cb.State())

	clock.Advance(10 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, "half-open", cb.State())
	cb.RecordSuccess()
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 2}, zerolog.Nop())

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1}, zerolog.Nop())
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow())
	assert.Equal(t, "closed", cb.State())
}

func TestClient_CircuitOpenFailsFast(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(
		WithBaseURL(srv.URL),
		WithCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, RecoveryTimeout: time.Hour}),
	)

	for i := 0; i < 2; i++ {
		_, err := c.Do(context.Background(), "/api/movies", nil)
		require.Error(t, err)
	}
	assert.Equal(t, int64(2), hits.Load())

	_, err := c.Do(context.Background(), "/api/movies", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int64(2), hits.Load())
	assert.False(t, IsCanceled(err))
}
