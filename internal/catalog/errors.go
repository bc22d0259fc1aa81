package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"movieexplorer/internal/fetch"
)

// ErrInvalidRating is wrapped by RatingInput validation failures
var ErrInvalidRating = errors.New("invalid rating")

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// DetailMessage returns the display text for err. Remote API failures carry
// a {"detail": "..."} body; its detail string is returned when present,
// otherwise the error message itself.
func DetailMessage(err error) string {
	if err == nil {
		return ""
	}
	if detail, ok := parseDetail([]byte(err.Error())); ok {
		return detail
	}
	return err.Error()
}

// IsNotFound reports whether err is a 404 from the remote API
func IsNotFound(err error) bool {
	return fetch.StatusCode(err) == http.StatusNotFound
}

// DetailInterceptor rewrites non-2xx JSON error bodies to their detail text
// so the Data Client error message is human readable.
func DetailInterceptor() fetch.ResponseInterceptor {
	return func(_ context.Context, resp *fetch.Response) (*fetch.Response, error) {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return resp, nil
		}
		if detail, ok := parseDetail(resp.Body); ok {
			next := *resp
			next.Body = []byte(detail)
			return &next, nil
		}
		return resp, nil
	}
}

// parseDetail extracts detail from an error body. Validation errors carry
// a list of {msg} objects which are joined.
func parseDetail(body []byte) (string, bool) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s, s != ""
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(eb.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; "), true
		}
	}
	return "", false
}
