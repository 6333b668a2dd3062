package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/cache"
	"github.com/casenetai/anonymizer/internal/config"
	"github.com/casenetai/anonymizer/internal/events"
	"github.com/casenetai/anonymizer/internal/logger"
	"github.com/casenetai/anonymizer/internal/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server exposes the anonymization engine over HTTP. The surrounding web
// application's route handlers call this boundary; persistence and caching
// happen here, never inside the engine.
type Server struct {
	config *config.Config
	logger *logger.Logger
	engine *anonymizer.Engine
	cache  *cache.ReportCache // optional
	store  *store.Store       // optional
	hub    *events.Hub
	router *mux.Router
	server *http.Server
}

// Options carries the optional collaborators a server may be wired with
type Options struct {
	Cache *cache.ReportCache
	Store *store.Store
}

// New creates a server around an already constructed engine
func New(cfg *config.Config, log *logger.Logger, engine *anonymizer.Engine, opts Options) *Server {
	hubConfig := &events.HubConfig{
		BroadcastAnonymizations: cfg.WebSocket.Events.BroadcastAnonymizations,
		BroadcastSystem:         cfg.WebSocket.Events.BroadcastSystem,
		BroadcastConnections:    cfg.WebSocket.Events.BroadcastConnections,
	}

	s := &Server{
		config: cfg,
		logger: log.WithComponent("server"),
		engine: engine,
		cache:  opts.Cache,
		store:  opts.Store,
		hub:    events.NewHub(hubConfig, log.WithComponent("events").Logger),
		router: mux.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/reports/{id:[0-9]+}/mappings", s.handleReportMappings).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting anonymization server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("cache", s.cache != nil),
		zap.Bool("store", s.store != nil),
	)

	if s.config.WebSocket.Enabled {
		go s.hub.Run()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping anonymization server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}
