package plugin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieexplorer/internal/fetch"
)

func writePlugins(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func loadManager(t *testing.T, files map[string]string) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.LoadFromDirectory(writePlugins(t, files)))
	return m
}

func newRequest() *fetch.Request {
	return &fetch.Request{
		Method: http.MethodGet,
		URL:    "http://api.test/api/movies?genre=Drama",
		Header: http.Header{"Accept": []string{"application/json"}},
	}
}

func TestLoadFromDirectory_MissingDirectory(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.LoadFromDirectory(filepath.Join(t.TempDir(), "absent")))
	assert.Empty(t, m.Plugins())
	assert.Empty(t, m.RequestInterceptors())
}

func TestLoadFromDirectory_FilenameOrderAndValidation(t *testing.T) {
	m := loadManager(t, map[string]string{
		"20-second.js":   "// @phase request\nfunction intercept(msg) { return msg; }",
		"10-first.js":    "// @phase response\nfunction intercept(msg) { return msg; }",
		"30-nophase.js":  "function intercept(msg) { return msg; }",
		"40-badphase.js": "// @phase sideways\nfunction intercept(msg) { return msg; }",
		"50-syntax.js":   "// @phase request\nfunction intercept(msg) { return msg; ",
		"notes.txt":      "// @phase request",
	})

	assert.Equal(t, []string{"10-first", "20-second"}, m.Plugins())
	assert.Len(t, m.RequestInterceptors(), 1)
	assert.Len(t, m.ResponseInterceptors(), 1)
}

func TestLoadFromDirectory_NotADirectory(t *testing.T) {
	dir := writePlugins(t, map[string]string{"file.js": ""})
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.LoadFromDirectory(filepath.Join(dir, "file.js")))
}

func TestRequestInterceptor_RewritesRequest(t *testing.T) {
	m := loadManager(t, map[string]string{
		"a.js": `// @phase request
function intercept(msg) {
    msg.headers["X-Api-Key"] = "demo";
    msg.url = utils.setQueryParam(msg.url, "limit", "5");
    console.log("rewrote", msg.url);
    return msg;
}`,
	})

	interceptors := m.RequestInterceptors()
	require.Len(t, interceptors, 1)

	req, err := interceptors[0](context.Background(), newRequest())
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "http://api.test/api/movies?genre=Drama&limit=5", req.URL)
	assert.Equal(t, "demo", req.Header.Get("X-Api-Key"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func TestRequestInterceptor_NoReturnLeavesRequest(t *testing.T) {
	m := loadManager(t, map[string]string{
		"a.js": "// @phase request\nfunction intercept(msg) { utils.queryParam(msg.url, 'genre'); }",
	})

	in := newRequest()
	out, err := m.RequestInterceptors()[0](context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestRequestInterceptor_ThrowNamesPlugin(t *testing.T) {
	m := loadManager(t, map[string]string{
		"deny.js": "// @phase request\nfunction intercept(msg) { throw new Error('blocked'); }",
	})

	_, err := m.RequestInterceptors()[0](context.Background(), newRequest())
	require.Error(t, err)

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "deny", pe.Plugin)
	assert.Contains(t, err.Error(), "blocked")
}

func TestRequestInterceptor_MissingFunction(t *testing.T) {
	m := loadManager(t, map[string]string{
		"empty.js": "// @phase request\nvar x = 1;",
	})

	_, err := m.RequestInterceptors()[0](context.Background(), newRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intercept function not defined")
}

func TestRequestInterceptor_Timeout(t *testing.T) {
	m := loadManager(t, map[string]string{
		"spin.js": "// @phase request\nfunction intercept(msg) { while (true) {} }",
	})
	m.SetTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := m.RequestInterceptors()[0](context.Background(), newRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution timed out")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRequestInterceptor_CallerCancellation(t *testing.T) {
	m := loadManager(t, map[string]string{
		"spin.js": "// @phase request\nfunction intercept(msg) { while (true) {} }",
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := m.RequestInterceptors()[0](ctx, newRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponseInterceptor_RewritesResponse(t *testing.T) {
	m := loadManager(t, map[string]string{
		"fix.js": `// @phase response
function intercept(msg) {
    if (msg.status === 404) {
        return { status: 200, body: "[]" };
    }
    var movies = JSON.parse(msg.body);
    movies.forEach(function (m) { m.title = m.title.toUpperCase(); });
    msg.body = JSON.stringify(movies);
    return msg;
}`,
	})
	intercept := m.ResponseInterceptors()[0]

	resp, err := intercept(context.Background(), &fetch.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`[{"id":1,"title":"Inception"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":1,"title":"INCEPTION"}]`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp, err = intercept(context.Background(), &fetch.Response{StatusCode: http.StatusNotFound, Header: http.Header{}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(resp.Body))
}

func TestInterceptors_WiredIntoFetchClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Tag") != "ab" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"id":7,"title":"Heat"}`))
	}))
	defer srv.Close()

	m := loadManager(t, map[string]string{
		"1-a.js": "// @phase request\nfunction intercept(msg) { msg.headers['X-Tag'] = 'a'; return msg; }",
		"2-b.js": "// @phase request\nfunction intercept(msg) { msg.headers['X-Tag'] += 'b'; return msg; }",
		"3-r.js": "// @phase response\nfunction intercept(msg) { var m = JSON.parse(msg.body); m.title = 'Plugged'; msg.body = JSON.stringify(m); return msg; }",
	})

	c := fetch.New(
		fetch.WithBaseURL(srv.URL),
		fetch.WithRequestInterceptor(m.RequestInterceptors()...),
		fetch.WithResponseInterceptor(m.ResponseInterceptors()...),
	)

	type movie struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	got, err := fetch.GetJSON[movie](context.Background(), c, "/api/movies/7")
	require.NoError(t, err)
	assert.Equal(t, movie{ID: 7, Title: "Plugged"}, got)
}

func TestClose(t *testing.T) {
	m := loadManager(t, map[string]string{
		"a.js": "// @phase request\nfunction intercept(msg) { return msg; }",
	})
	m.Close()
	assert.Empty(t, m.Plugins())
}
