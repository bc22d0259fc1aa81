// Package fetch implements the Data Client used to talk to the remote movie API.
//
// A Client resolves relative targets against a base URL, runs request and
// response interceptors in registration order, bounds every call by a
// timeout, caches successful GET bodies for a TTL and collapses concurrent
// identical GETs into one network call.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"movieexplorer/internal/cache"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultTTL       = 30 * time.Second
	DefaultCacheSize = 1000
)

var absoluteURLRegex = regexp.MustCompile(`(?i)^https?://`)

// Client is the HTTP Data Client. It is safe for concurrent use.
// Interceptors are fixed at construction.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	defaultTTL time.Duration

	store    cache.Store
	inflight singleflight.Group

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	retry      RetryConfig
	breakerCfg CircuitBreakerConfig
	breaker    *CircuitBreaker
	recorder   Recorder
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets the prefix for relative targets; a trailing slash is stripped.
// The empty string means same origin.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the default per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDefaultTTL sets the cache TTL used when a call does not override it.
// Zero disables caching and dedup by default.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *Client) {
		c.defaultTTL = d
	}
}

// WithStore sets the response cache
func WithStore(s cache.Store) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithRequestInterceptor appends request interceptors
func WithRequestInterceptor(interceptors ...RequestInterceptor) Option {
	return func(c *Client) {
		c.requestInterceptors = append(c.requestInterceptors, interceptors...)
	}
}

// WithResponseInterceptor appends response interceptors
func WithResponseInterceptor(interceptors ...ResponseInterceptor) Option {
	return func(c *Client) {
		c.responseInterceptors = append(c.responseInterceptors, interceptors...)
	}
}

// WithRetry sets the retry policy
func WithRetry(rc RetryConfig) Option {
	return func(c *Client) {
		c.retry = rc
	}
}

// WithCircuitBreaker enables a circuit breaker in front of the transport
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breakerCfg = cfg
	}
}

// WithRecorder sets the metrics sink
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "fetch").Logger()
	}
}

// New creates a new Client
func New(opts ...Option) *Client {
	c := &Client{
		timeout:    DefaultTimeout,
		defaultTTL: DefaultTTL,
		retry:      RetryConfig{},
		recorder:   nopRecorder{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if c.store == nil {
		c.store, _ = cache.NewMemoryStore(DefaultCacheSize)
	}
	if c.breakerCfg.Enabled {
		c.breaker = NewCircuitBreaker(c.breakerCfg, c.logger)
	}

	return c
}

// Resolve returns target unchanged when it is an absolute http(s) URL,
// otherwise prefixed with the base URL.
func (c *Client) Resolve(target string) string {
	if absoluteURLRegex.MatchString(target) {
		return target
	}
	return c.baseURL + target
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs a request and returns the response body.
// The returned slice may be shared with other callers and the cache; do not modify it.
func (c *Client) Do(ctx context.Context, target string, opts *RequestOptions) ([]byte, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	req := &Request{
		Method: strings.ToUpper(opts.Method),
		URL:    c.Resolve(target),
		Header: opts.Header.Clone(),
		Body:   opts.Body,
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	var err error
	for _, intercept := range c.requestInterceptors {
		req, err = intercept(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceledError(ctx)
			}
			return nil, interceptorError("request interceptor failed: %v", err)
		}
	}

	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var ttl time.Duration
	var key string
	if cache.IsCacheable(req.Method) {
		ttl = c.defaultTTL
		if opts.CacheTTL != nil {
			ttl = *opts.CacheTTL
		}
		byURL := opts.CacheByURL == nil || *opts.CacheByURL
		key = cache.ResolveKey(opts.CacheKey, byURL, req.Method, req.URL, req.Body)
	}

	if ttl <= 0 || key == "" {
		return c.execute(ctx, req)
	}

	if data, ok := c.store.Get(ctx, key); ok {
		c.logger.Debug().Str("cacheKey", key).Msg("cache hit")
		c.recorder.CacheHit()
		return data, nil
	}
	c.recorder.CacheMiss()

	// ran is set only if this call's function became the shared one
	var ran atomic.Bool
	ch := c.inflight.DoChan(key, func() (interface{}, error) {
		ran.Store(true)
		body, err := c.execute(ctx, req)
		if err != nil {
			return nil, err
		}
		// Only well-formed JSON is worth keeping
		if json.Valid(body) {
			c.store.Set(ctx, key, body, ttl)
		}
		return body, nil
	})

	select {
	case res := <-ch:
		if !ran.Load() {
			c.logger.Debug().Str("cacheKey", key).Msg("inflight dedupe")
			c.recorder.Deduped()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, canceledError(ctx)
	}
}

// roundTrip performs one network exchange and applies response interceptors
func (c *Client) roundTrip(ctx context.Context, req *Request) ([]byte, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, &Error{Kind: KindTransport, Message: ErrCircuitOpen.Error(), Err: ErrCircuitOpen}
	}

	start := time.Now()
	body, err := c.send(ctx, req)
	c.recorder.ObserveRequest(req.Method, time.Since(start), err)

	if c.breaker != nil && !IsCanceled(err) && !isInterceptorFailure(err) {
		if isRetryable(err) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return body, err
}

func (c *Client) send(ctx context.Context, req *Request) ([]byte, error) {
	var reqBody io.Reader
	if len(req.Body) > 0 {
		reqBody = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reqBody)
	if err != nil {
		return nil, transportError("failed to create HTTP request: %v", err)
	}
	httpReq.Header = req.Header.Clone()
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceledError(ctx)
		}
		return nil, transportError("HTTP request failed: %v", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceledError(ctx)
		}
		return nil, transportError("failed to read response: %v", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}
	for _, intercept := range c.responseInterceptors {
		resp, err = intercept(ctx, resp)
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceledError(ctx)
			}
			return nil, interceptorError("response interceptor failed: %v", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, resp.Body)
	}
	return resp.Body, nil
}

// Close releases idle connections and the cache store
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return c.store.Close()
}

// DoJSON performs a request and decodes the JSON body into T
func DoJSON[T any](ctx context.Context, c *Client, target string, opts *RequestOptions) (T, error) {
	var out T
	body, err := c.Do(ctx, target, opts)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, decodeError(err)
	}
	return out, nil
}

// GetJSON performs a cached GET and decodes the JSON body into T
func GetJSON[T any](ctx context.Context, c *Client, target string) (T, error) {
	return DoJSON[T](ctx, c, target, nil)
}
