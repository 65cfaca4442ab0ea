// Package server provides the HTTP API for idscan.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/config"
	"github.com/hyperjump/idscan/internal/index"
	"github.com/hyperjump/idscan/internal/models"
	"github.com/hyperjump/idscan/internal/queue"
	"github.com/hyperjump/idscan/internal/storage"
)

// Searcher runs full-text queries over processed records.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) ([]index.Hit, error)
}

// Server is the HTTP server for the idscan API.
type Server struct {
	dispatcher queue.Dispatcher
	store      storage.Store
	search     Searcher
	config     *config.ServerConfig
	diskPaths  []string
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithSearch enables GET /api/v1/search.
func WithSearch(s Searcher) Option {
	return func(srv *Server) { srv.search = s }
}

// WithDiskPaths lists the files whose size /health reports.
func WithDiskPaths(paths ...string) Option {
	return func(srv *Server) { srv.diskPaths = paths }
}

// NewServer creates a server with the given dependencies.
func NewServer(dispatcher queue.Dispatcher, store storage.Store, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dispatcher: dispatcher,
		store:      store,
		config:     cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Post("/api/v1/extract", s.handleExtract)
	r.Get("/status/{task_id}", s.handleTaskStatus)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Get("/api/v1/documents/{id}/face", s.handleGetFace)
	r.Get("/api/v1/history", s.handleHistory)
	r.Get("/api/v1/history/export.xlsx", s.handleExport)
	r.Get("/api/v1/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
