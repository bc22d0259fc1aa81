package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieexplorer/internal/catalog"
	"movieexplorer/internal/fetch"
)

type fakeLister struct {
	mu      sync.Mutex
	queries []catalog.Query
	list    func(ctx context.Context, q catalog.Query) ([]catalog.Movie, error)
}

func (f *fakeLister) ListMovies(ctx context.Context, q catalog.Query) ([]catalog.Movie, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.list != nil {
		return f.list(ctx, q)
	}
	return []catalog.Movie{{ID: 1, Title: "Movie for " + q.Q}}, nil
}

func (f *fakeLister) Queries() []catalog.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.Query(nil), f.queries...)
}

const testDebounce = 30 * time.Millisecond

func dial(t *testing.T, h *Handler, path, rawQuery string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	params := url.Values{"path": {path}, "query": {rawQuery}}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/search?" + params.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendInput(t *testing.T, conn *websocket.Conn, value string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeInput, Value: value}))
}

func readMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(d))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", data)
}

func TestSession_CommitPushesReplaceThenResults(t *testing.T) {
	lister := &fakeLister{}
	h := NewHandler(lister, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/", "")

	for _, v := range []string{"I", "Inc", "Inception"} {
		sendInput(t, conn, v)
	}

	replace := readMessage(t, conn, time.Second)
	assert.Equal(t, TypeReplace, replace["type"])
	assert.Equal(t, "/movies?q=Inception", replace["url"])

	results := readMessage(t, conn, time.Second)
	assert.Equal(t, TypeResults, results["type"])
	assert.Equal(t, "/movies?q=Inception", results["url"])
	movies := results["movies"].([]interface{})
	require.Len(t, movies, 1)
	assert.Equal(t, "Movie for Inception", movies[0].(map[string]interface{})["title"])

	expectSilence(t, conn, 4*testDebounce)
	assert.Len(t, lister.Queries(), 1)
}

func TestSession_ClearOnMoviesPage(t *testing.T) {
	lister := &fakeLister{}
	h := NewHandler(lister, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/movies", "q=Heat")

	sendInput(t, conn, "")

	replace := readMessage(t, conn, time.Second)
	assert.Equal(t, "/movies", replace["url"])
	results := readMessage(t, conn, time.Second)
	assert.Equal(t, TypeResults, results["type"])

	queries := lister.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "", queries[0].Q)
}

func TestSession_ClearElsewhereIsSilent(t *testing.T) {
	h := NewHandler(&fakeLister{}, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/actors", "q=Heat")

	sendInput(t, conn, " ")
	expectSilence(t, conn, 4*testDebounce)
}

func TestSession_NavigateSyncsWithoutCommit(t *testing.T) {
	lister := &fakeLister{}
	h := NewHandler(lister, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/movies", "q=Heat")

	sendInput(t, conn, "Bar")
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeNavigate, Path: "/movies", Query: "?q=Barbie"}))

	expectSilence(t, conn, 4*testDebounce)
	assert.Empty(t, lister.Queries())

	// the re-seeded input equals the address, so retyping it is a no-op
	sendInput(t, conn, "Barbie")
	time.Sleep(4 * testDebounce)
	assert.Empty(t, lister.Queries())
}

func TestSession_ErrorMessage(t *testing.T) {
	lister := &fakeLister{list: func(context.Context, catalog.Query) ([]catalog.Movie, error) {
		return nil, errors.New(`{"detail":"search unavailable"}`)
	}}
	h := NewHandler(lister, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/", "")

	sendInput(t, conn, "Heat")

	assert.Equal(t, TypeReplace, readMessage(t, conn, time.Second)["type"])
	msg := readMessage(t, conn, time.Second)
	assert.Equal(t, TypeError, msg["type"])
	assert.Equal(t, "search unavailable", msg["message"])
}

func TestSession_CancelledLoadIsSilent(t *testing.T) {
	lister := &fakeLister{list: func(context.Context, catalog.Query) ([]catalog.Movie, error) {
		return nil, &fetch.Error{Kind: fetch.KindCanceled, Message: "request canceled"}
	}}
	h := NewHandler(lister, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/", "")

	sendInput(t, conn, "Heat")
	assert.Equal(t, TypeReplace, readMessage(t, conn, time.Second)["type"])
	expectSilence(t, conn, 4*testDebounce)
}

func TestSession_NewCommitCancelsPreviousLoad(t *testing.T) {
	var mu sync.Mutex
	var cancelled []string
	lister := &fakeLister{list: func(ctx context.Context, q catalog.Query) ([]catalog.Movie, error) {
		if q.Q == "slow" {
			<-ctx.Done()
			mu.Lock()
			cancelled = append(cancelled, q.Q)
			mu.Unlock()
			return nil, ctx.Err()
		}
		return []catalog.Movie{{ID: 2, Title: q.Q}}, nil
	}}
	h := NewHandler(lister, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/", "")

	sendInput(t, conn, "slow")
	assert.Equal(t, "/movies?q=slow", readMessage(t, conn, time.Second)["url"])

	sendInput(t, conn, "fast")
	assert.Equal(t, "/movies?q=fast", readMessage(t, conn, time.Second)["url"])
	results := readMessage(t, conn, time.Second)
	assert.Equal(t, TypeResults, results["type"])
	assert.Equal(t, "/movies?q=fast", results["url"])

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(cancelled) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSession_InvalidAndUnknownMessages(t *testing.T) {
	h := NewHandler(&fakeLister{}, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/", "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readMessage(t, conn, time.Second)
	assert.Equal(t, TypeError, msg["type"])
	assert.Equal(t, "invalid message", msg["message"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe"}))
	msg = readMessage(t, conn, time.Second)
	assert.Equal(t, "unknown message type: subscribe", msg["message"])
}

func TestHandler_TracksAndClosesSessions(t *testing.T) {
	h := NewHandler(&fakeLister{}, testDebounce, zerolog.Nop())
	conn := dial(t, h, "/", "")

	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)

	h.CloseAll()
	require.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 5*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
