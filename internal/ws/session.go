package ws

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"movieexplorer/internal/catalog"
	"movieexplorer/internal/fetch"
	"movieexplorer/internal/querysync"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Session is one live-search connection. It is the querysync.Location of
// its browser tab: commits are pushed as replace messages followed by the
// results of the new query.
type Session struct {
	id         string
	conn       *websocket.Conn
	lister     MovieLister
	controller *querysync.Controller
	logger     zerolog.Logger

	mu         sync.Mutex
	path       string
	rawQuery   string
	loadCancel context.CancelFunc

	ctx       context.Context
	cancel    context.CancelFunc
	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
	onClose   func(*Session)
}

// NewSession creates a session whose address starts at path?rawQuery
func NewSession(conn *websocket.Conn, lister MovieLister, path, rawQuery string, debounce time.Duration, logger zerolog.Logger) *Session {
	if path == "" {
		path = "/"
	}
	s := &Session{
		id:        uuid.NewString(),
		conn:      conn,
		lister:    lister,
		path:      path,
		rawQuery:  strings.TrimPrefix(rawQuery, "?"),
		sendChan:  make(chan []byte, 256),
		closeChan: make(chan struct{}),
	}
	s.logger = logger.With().Str("session", s.id).Logger()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.controller = querysync.New(s,
		querysync.WithDebounce(debounce),
		querysync.WithLogger(s.logger),
	)
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Path implements querysync.Location
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Query implements querysync.Location
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := url.ParseQuery(s.rawQuery)
	return v.Get("q")
}

// Replace implements querysync.Location. It tells the browser to replace
// its address and loads the results for the new query, cancelling any load
// still running for the previous one.
func (s *Session) Replace(path, rawQuery string) {
	target := path
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	s.mu.Lock()
	s.path, s.rawQuery = path, rawQuery
	if s.loadCancel != nil {
		s.loadCancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.loadCancel = cancel
	s.mu.Unlock()

	s.sendJSON(ReplaceMessage{Type: TypeReplace, URL: target})
	go s.load(ctx, target, rawQuery)
}

func (s *Session) load(ctx context.Context, target, rawQuery string) {
	values, _ := url.ParseQuery(rawQuery)
	movies, err := s.lister.ListMovies(ctx, catalog.ParseQuery(values))
	if err != nil {
		if fetch.IsCanceled(err) || ctx.Err() != nil {
			s.logger.Debug().Str("url", target).Msg("search load cancelled")
			return
		}
		s.logger.Warn().Err(err).Str("url", target).Msg("search load failed")
		s.sendJSON(ErrorMessage{Type: TypeError, Message: catalog.DetailMessage(err)})
		return
	}
	if ctx.Err() != nil {
		return
	}
	if movies == nil {
		movies = []catalog.Movie{}
	}
	s.sendJSON(ResultsMessage{Type: TypeResults, URL: target, Movies: movies})
}

// Run starts the session read and write loops
func (s *Session) Run(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.writePump(ctx)

	s.readPump(ctx)
}

func (s *Session) readPump(ctx context.Context) {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeChan:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		s.handleMessage(data)
	}
}

func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeChan:
			return
		case data := <-s.sendChan:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendJSON(ErrorMessage{Type: TypeError, Message: "invalid message"})
		return
	}

	switch msg.Type {
	case TypeInput:
		s.controller.SetInput(msg.Value)
	case TypeNavigate:
		path := msg.Path
		if path == "" {
			path = "/"
		}
		s.mu.Lock()
		s.path, s.rawQuery = path, strings.TrimPrefix(msg.Query, "?")
		s.mu.Unlock()
		s.controller.Sync()
		s.logger.Debug().Str("path", path).Msg("navigated")
	default:
		s.sendJSON(ErrorMessage{Type: TypeError, Message: "unknown message type: " + msg.Type})
	}
}

func (s *Session) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal message")
		return
	}
	s.send(data)
}

func (s *Session) send(data []byte) {
	select {
	case s.sendChan <- data:
	case <-s.closeChan:
	default:
		// Channel full, drop message
		s.logger.Warn().Msg("send channel full, dropping message")
	}
}

// Close stops the controller, cancels loads and closes the connection
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeChan)
		s.controller.Close()
		s.cancel()
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
		s.logger.Debug().Msg("session closed")
	})
}
