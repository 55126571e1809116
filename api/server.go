// Package api exposes the extraction core over a small local HTTP surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"teraext/internal"
)

var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrServerNotRunning     = errors.New("server is not running")
)

// ExtractService is the slice of the extraction facade the handlers need.
// It is an interface so handler tests can stub the upstream entirely.
type ExtractService interface {
	Extract(shareURL string, backend internal.Backend) *internal.ExtractionResult
	GenerateLinks(fsID string, auth *internal.AuthBundle, backend internal.Backend) *internal.DownloadLinkSet
}

// Server hosts the extraction API on a local port.
type Server struct {
	service  ExtractService
	cache    internal.ResponseCache
	logger   *internal.SecureLogger
	port     int
	router   *chi.Mux
	server   *http.Server
	listener net.Listener
	running  bool
	mu       sync.RWMutex
}

// NewServer wires the router. A nil cache disables the cache endpoints.
func NewServer(service ExtractService, cache internal.ResponseCache, logger *internal.SecureLogger, port int) *Server {
	if logger == nil {
		logger = internal.NopLogger()
	}
	s := &Server{
		service: service,
		cache:   cache,
		logger:  logger,
		port:    port,
		router:  chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/extract", s.handleExtract)
		r.Post("/links", s.handleLinks)
		r.Post("/cache/sweep", s.handleCacheSweep)
		r.Delete("/cache", s.handleCacheClear)
	})
}

// logRequests logs every request through the redacting logger, so share
// URLs in request bodies never leak via a separate plain access log.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("%s %s -> %d (%d bytes, %s)",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start).Round(time.Millisecond))
	})
}

// Handler exposes the router for tests driving it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error: %v", err)
		}
	}()

	s.logger.Info("API listening on %s", s.ActualAddr())
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServerNotRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.running = false
	s.server = nil
	s.listener = nil
	return nil
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the configured bind address.
func (s *Server) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.port)
}

// ActualAddr returns the bound address, which differs from Addr when the
// configured port is 0.
func (s *Server) ActualAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.Addr()
}
