package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// DefaultBackoff is the wait before the first and second retry
var DefaultBackoff = []time.Duration{250 * time.Millisecond, 750 * time.Millisecond}

// RetryConfig holds retry configuration.
// Only GET requests are retried, and only on transport failures or 5xx.
type RetryConfig struct {
	Enabled bool
	Backoff []time.Duration // one entry per retry
}

// DefaultRetryConfig returns the enabled 250ms/750ms schedule
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Enabled: true, Backoff: DefaultBackoff}
}

func (rc RetryConfig) maxAttempts(method string) int {
	if !rc.Enabled || method != http.MethodGet {
		return 1
	}
	return len(rc.Backoff) + 1
}

// isRetryable reports whether a failed attempt may be repeated
func isRetryable(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case KindTransport:
		return !errors.Is(fe, ErrCircuitOpen)
	case KindStatus:
		return fe.Status >= 500
	default:
		return false
	}
}

// isInterceptorFailure reports a local interceptor error, which says nothing
// about the remote API's health
func isInterceptorFailure(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindInterceptor
}

// execute sends the request, retrying per the client's RetryConfig.
// A cancellation during a backoff wait abandons the call immediately.
func (c *Client) execute(ctx context.Context, req *Request) ([]byte, error) {
	maxAttempts := c.retry.maxAttempts(req.Method)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, c.retry.Backoff[attempt-1]); err != nil {
				return nil, err
			}
		}

		body, err := c.roundTrip(ctx, req)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, canceledError(ctx)
		}
		if !isRetryable(err) || attempt == maxAttempts-1 {
			break
		}

		c.recorder.Retried()
		c.logger.Warn().
			Int("attempt", attempt+1).
			Int("maxAttempts", maxAttempts).
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("request failed, retrying")
	}

	return nil, lastErr
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return canceledError(ctx)
	case <-timer.C:
		return nil
	}
}
