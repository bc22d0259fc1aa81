package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RouterConfig holds what the router mounts besides the pages
type RouterConfig struct {
	Handler *Handler
	Search  http.Handler       // live search websocket, optional
	Metrics func() interface{} // snapshot served at /metrics, optional
	Logger  zerolog.Logger
}

// NewRouter creates the HTTP router
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, cfg.Metrics())
		})
	}
	if cfg.Search != nil {
		r.Handle("/ws/search", cfg.Search)
	}

	h := cfg.Handler
	r.Get("/", h.Home)
	r.Route("/movies", func(r chi.Router) {
		r.Get("/", h.Movies)
		r.Post("/filters", h.ApplyFilters)
		r.Get("/{id}", h.Movie)
		r.Post("/{id}/ratings", h.CreateRating)
	})
	r.Get("/actors", h.Actors)
	r.Get("/actors/{id}", h.Actor)
	r.Get("/directors", h.Directors)
	r.Get("/directors/{id}", h.Director)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.renderer.RenderError(w, http.StatusNotFound, "Page Not Found", "Nothing lives at "+r.URL.Path, "/")
	})

	return r
}

// requestIDLogger adds chi's request id to the request logger
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			logger := zerolog.Ctx(r.Context())
			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("requestId", id)
			})
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
