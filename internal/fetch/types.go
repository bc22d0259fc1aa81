package fetch

import (
	"context"
	"net/http"
	"time"
)

// Request is what request interceptors see and may rewrite
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is what response interceptors see and may rewrite.
// The body has already been read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestInterceptor maps a request to a possibly modified request.
// Returning an error fails the call.
type RequestInterceptor func(ctx context.Context, req *Request) (*Request, error)

// ResponseInterceptor maps a response to a possibly modified response
type ResponseInterceptor func(ctx context.Context, resp *Response) (*Response, error)

// RequestOptions configures a single call. The zero value is a cached GET
// using the client defaults.
type RequestOptions struct {
	Method string
	Body   []byte
	Header http.Header

	// Timeout overrides the client timeout when positive
	Timeout time.Duration

	// CacheTTL overrides the client default TTL; a zero TTL disables caching
	// and in-flight dedup for this call
	CacheTTL *time.Duration

	// CacheKey replaces the derived METHOD:url:body key
	CacheKey string

	// CacheByURL set to false leaves the key empty unless CacheKey is given,
	// which disables caching for this call
	CacheByURL *bool
}

// TTL is a helper for RequestOptions.CacheTTL
func TTL(d time.Duration) *time.Duration {
	return &d
}

// Bool is a helper for RequestOptions.CacheByURL
func Bool(b bool) *bool {
	return &b
}

// Recorder receives Data Client metrics
type Recorder interface {
	ObserveRequest(operation string, d time.Duration, err error)
	CacheHit()
	CacheMiss()
	Deduped()
	Retried()
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, time.Duration, error) {}
func (nopRecorder) CacheHit()                                  {}
func (nopRecorder) CacheMiss()                                 {}
func (nopRecorder) Deduped()                                   {}
func (nopRecorder) Retried()                                   {}
