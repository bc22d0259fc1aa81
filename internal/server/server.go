package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"movieexplorer/internal/cache"
	"movieexplorer/internal/catalog"
	"movieexplorer/internal/config"
	"movieexplorer/internal/fetch"
	"movieexplorer/internal/metrics"
	"movieexplorer/internal/plugin"
	"movieexplorer/internal/web"
	"movieexplorer/internal/ws"
)

// Version is reported in the User-Agent sent to the remote API
const Version = "0.1.0"

// Server represents the main server
type Server struct {
	cfg           *config.Config
	fetch         *fetch.Client
	metrics       *metrics.Registry
	pluginManager *plugin.Manager
	search        *ws.Handler
	handler       http.Handler
	httpServer    *http.Server
	logger        zerolog.Logger
}

// New creates a new Server
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	store, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Create plugin manager based on config
	var pluginMgr *plugin.Manager
	if cfg.IsPluginsEnabled() {
		pluginMgr = plugin.NewManager(logger)
		pluginMgr.SetTimeout(cfg.GetPluginTimeoutDuration())

		if err := pluginMgr.LoadFromDirectory(cfg.GetPluginDirectory()); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to load plugins: %w", err)
		}

		if names := pluginMgr.Plugins(); len(names) > 0 {
			logger.Info().
				Strs("plugins", names).
				Str("directory", cfg.GetPluginDirectory()).
				Msg("plugins enabled")
		} else {
			logger.Info().
				Str("directory", cfg.GetPluginDirectory()).
				Msg("plugins enabled but no plugins loaded")
		}
	} else {
		logger.Info().Msg("plugins disabled")
	}

	registry := metrics.NewRegistry()

	opts := []fetch.Option{
		fetch.WithBaseURL(cfg.APIBaseURL),
		fetch.WithTimeout(cfg.GetRequestTimeoutDuration()),
		fetch.WithDefaultTTL(cfg.GetCacheTTLDuration()),
		fetch.WithStore(store),
		fetch.WithRecorder(registry),
		fetch.WithRequestInterceptor(
			fetch.RequestIDInterceptor(chimw.GetReqID),
			fetch.UserAgentInterceptor("movieexplorer/"+Version),
		),
		fetch.WithResponseInterceptor(catalog.DetailInterceptor()),
		fetch.WithLogger(logger),
	}
	if cfg.RetryEnabled {
		opts = append(opts, fetch.WithRetry(fetch.DefaultRetryConfig()))
	}
	if cfg.IsCircuitBreakerEnabled() {
		opts = append(opts, fetch.WithCircuitBreaker(fetch.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  cfg.CircuitBreaker.GetRecoveryTimeoutDuration(),
			HalfOpenRequests: cfg.CircuitBreaker.HalfOpenRequests,
		}))
		logger.Info().
			Int("failureThreshold", cfg.CircuitBreaker.FailureThreshold).
			Int("recoveryTimeout", cfg.CircuitBreaker.RecoveryTimeout).
			Msg("circuit breaker enabled")
	}
	if pluginMgr != nil {
		opts = append(opts,
			fetch.WithRequestInterceptor(pluginMgr.RequestInterceptors()...),
			fetch.WithResponseInterceptor(pluginMgr.ResponseInterceptors()...),
		)
	}
	fc := fetch.New(opts...)

	movies := catalog.New(fc, logger)

	renderer, err := web.NewRenderer(logger)
	if err != nil {
		fc.Close()
		if pluginMgr != nil {
			pluginMgr.Close()
		}
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	search := ws.NewHandler(movies, cfg.GetSearchDebounceDuration(), logger)

	router := web.NewRouter(web.RouterConfig{
		Handler: web.NewHandler(movies, renderer),
		Search:  search,
		Metrics: func() interface{} { return registry.Snapshot() },
		Logger:  logger,
	})

	return &Server{
		cfg:           cfg,
		fetch:         fc,
		metrics:       registry,
		pluginManager: pluginMgr,
		search:        search,
		handler:       router,
		logger:        logger,
	}, nil
}

// newStore creates the response cache based on config
func newStore(cfg *config.Config, logger zerolog.Logger) (cache.Store, error) {
	if !cfg.IsCacheEnabled() {
		logger.Info().Msg("cache disabled")
		return cache.NewNoopStore(), nil
	}

	switch cfg.Cache.Backend {
	case config.BackendRedis:
		store, err := cache.NewRedisStore(cache.RedisConfig{
			URL:    cfg.Cache.RedisURL,
			Prefix: cfg.Cache.Prefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		logger.Info().
			Str("backend", string(cfg.Cache.Backend)).
			Int("ttl", cfg.CacheTTL).
			Msg("cache enabled")
		return store, nil
	default:
		store, err := cache.NewMemoryStore(cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		logger.Info().
			Str("backend", string(cfg.Cache.Backend)).
			Int("size", cfg.Cache.Size).
			Int("ttl", cfg.CacheTTL).
			Msg("cache enabled")
		return store, nil
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the Data Client metrics registry
func (s *Server) Metrics() *metrics.Registry {
	return s.metrics
}

// Start starts the server
func (s *Server) Start() error {
	addr := s.cfg.Addr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("addr", addr).
			Str("api", s.fetch.BaseURL()).
			Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.logger.Info().
		Str("pages", fmt.Sprintf("http://%s/", addr)).
		Str("search", fmt.Sprintf("ws://%s/ws/search", addr)).
		Msg("endpoint available")

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")

	// live search sessions are hijacked connections that Shutdown does not track
	s.search.CloseAll()

	var httpErr error
	if s.httpServer != nil {
		httpErr = s.httpServer.Shutdown(ctx)
	}

	if s.pluginManager != nil {
		s.pluginManager.Close()
	}

	if err := s.fetch.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close cache")
	}

	if httpErr != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", httpErr)
	}

	s.logger.Info().Msg("server stopped")
	return nil
}
