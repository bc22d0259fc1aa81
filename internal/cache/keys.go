package cache

import (
	"net/http"
	"strings"
)

// IsCacheable reports whether a request method may be served from cache.
// Only GET (or an empty method, which means GET) qualifies.
func IsCacheable(method string) bool {
	return method == "" || strings.EqualFold(method, http.MethodGet)
}

// GenerateKey derives the cache key for a request: METHOD:url:body
func GenerateKey(method, url string, body []byte) string {
	if method == "" {
		method = http.MethodGet
	}
	return strings.ToUpper(method) + ":" + url + ":" + string(body)
}

// ResolveKey applies the key selection rules: an explicit key wins; when
// keying by URL is turned off the key is empty and the call is not cached;
// otherwise the key is derived from method, URL and body.
func ResolveKey(explicit string, byURL bool, method, url string, body []byte) string {
	if explicit != "" {
		return explicit
	}
	if !byURL {
		return ""
	}
	return GenerateKey(method, url, body)
}
