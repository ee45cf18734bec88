package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/paceclock/internal/cache"
	"github.com/goodtune/paceclock/internal/engine"
	"github.com/goodtune/paceclock/internal/feed"
	"github.com/goodtune/paceclock/internal/settings"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the HTTP server configuration.
type Config struct {
	ListenAddr string
}

// Server exposes the timing engine, settings, display feed, and cached shell
// over HTTP.
type Server struct {
	config   Config
	engine   *engine.Engine
	settings *settings.Manager
	feed     *feed.Feed
	hub      *feed.Hub
	assets   *cache.Controller
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates the application HTTP server.
func NewServer(cfg Config, eng *engine.Engine, manager *settings.Manager, displayFeed *feed.Feed, hub *feed.Hub, assets *cache.Controller, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		config:   cfg,
		engine:   eng,
		settings: manager,
		feed:     displayFeed,
		hub:      hub,
		assets:   assets,
		router:   router,
		logger:   logger.With().Str("component", "server").Logger(),
	}

	s.routes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() {
	s.router.Use(LoggingMiddleware(s.logger))

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tap", s.handleTap).Methods(http.MethodPost)
	api.HandleFunc("/finish", s.handleFinish).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/intervals", s.handleIntervals).Methods(http.MethodGet)
	api.HandleFunc("/ghost", s.handleGhost).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handlePutSettings).Methods(http.MethodPut)

	s.router.HandleFunc("/ws", s.hub.ServeWS)
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Everything else is a shell asset request, intercepted cache-first.
	s.router.PathPrefix("/").Handler(s.assets)
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
