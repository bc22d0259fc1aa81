package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"movieexplorer/internal/querysync"
)

// upgrader keeps gorilla's default origin check: a browser Origin header must
// match the request host, so other sites cannot drive a visitor's search
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades live-search connections and tracks their sessions
type Handler struct {
	lister   MovieLister
	debounce time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHandler creates a new WebSocket handler
func NewHandler(lister MovieLister, debounce time.Duration, logger zerolog.Logger) *Handler {
	if debounce <= 0 {
		debounce = querysync.DefaultDebounce
	}
	return &Handler{
		lister:   lister,
		debounce: debounce,
		logger:   logger.With().Str("component", "ws").Logger(),
		sessions: make(map[string]*Session),
	}
}

// ServeHTTP handles WebSocket upgrade requests. The page's current address
// is passed as ?path=...&query=...
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("failed to upgrade connection")
		return
	}

	params := r.URL.Query()
	session := NewSession(conn, h.lister, params.Get("path"), params.Get("query"), h.debounce,
		h.logger.With().Str("remoteAddr", r.RemoteAddr).Logger())
	session.onClose = h.remove

	h.mu.Lock()
	h.sessions[session.ID()] = session
	h.mu.Unlock()

	h.logger.Info().
		Str("session", session.ID()).
		Str("remoteAddr", r.RemoteAddr).
		Msg("new live search connection")

	session.Run(r.Context())
}

// Count returns the number of open sessions
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAll closes every open session
func (h *Handler) CloseAll() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	h.logger.Info().Int("sessions", len(sessions)).Msg("closed live search sessions")
}

func (h *Handler) remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID())
	h.mu.Unlock()
}
