package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/subculture-collective/spywatcher/internal/metrics"
	"github.com/subculture-collective/spywatcher/internal/store"
	"github.com/subculture-collective/spywatcher/pkg/extension"
	"github.com/subculture-collective/spywatcher/pkg/ws"
)

// Server is the HTTP API for the monitoring host: health and metrics
// endpoints, the extension management API, the websocket feed, and the
// dynamic mount point for extension routes.
type Server struct {
	host    string
	port    int
	server  *http.Server
	manager *extension.Manager
	hub     *ws.Hub
	store   *store.Store
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	Manager        *extension.Manager
	Hub            *ws.Hub
	Store          *store.Store
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// NewServer creates the HTTP server. Hub, Store, and Metrics may be nil;
// the corresponding endpoints respond 404.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("extension manager is required")
	}

	s := &Server{
		host:    cfg.Host,
		port:    cfg.Port,
		manager: cfg.Manager,
		hub:     cfg.Hub,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.routes(r)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}
