package fetch

import (
	"context"

	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation id to the remote API
const HeaderRequestID = "X-Request-ID"

// RequestIDInterceptor sets X-Request-ID when the request does not carry one.
// fromContext may supply an id already bound to ctx (for example the id of the
// inbound page request); a new UUID is generated otherwise.
func RequestIDInterceptor(fromContext func(context.Context) string) RequestInterceptor {
	return func(ctx context.Context, req *Request) (*Request, error) {
		if req.Header.Get(HeaderRequestID) != "" {
			return req, nil
		}
		id := ""
		if fromContext != nil {
			id = fromContext(ctx)
		}
		if id == "" {
			id = uuid.NewString()
		}
		req.Header.Set(HeaderRequestID, id)
		return req, nil
	}
}

// UserAgentInterceptor sets a fixed User-Agent
func UserAgentInterceptor(userAgent string) RequestInterceptor {
	return func(_ context.Context, req *Request) (*Request, error) {
		req.Header.Set("User-Agent", userAgent)
		return req, nil
	}
}
