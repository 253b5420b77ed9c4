// Package httpserver provides the HTTP API of the service catalog.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/httpserver/handlers"
	"github.com/williamsiker/practicas/internal/httpserver/middleware"
	"github.com/williamsiker/practicas/internal/observability"
)

// Server is the HTTP server for the catalog API.
type Server struct {
	config     config.ServerConfig
	router     chi.Router
	httpServer *http.Server
	handlers   *handlers.Context
	metrics    *observability.Metrics
	limiter    *middleware.RateLimiter

	mu       sync.Mutex
	listener net.Listener
}

// ServerDeps contains dependencies for creating a new server.
type ServerDeps struct {
	Config   config.ServerConfig
	UseCases *catalogapp.UseCases
	// Metrics enables /metrics and request instrumentation when set.
	Metrics *observability.Metrics
	// Ping reports storage health on /health.
	Ping    func(ctx context.Context) error
	Version string
}

// NewServer creates a new HTTP server for the catalog API.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		config:  deps.Config,
		metrics: deps.Metrics,
		handlers: &handlers.Context{
			UseCases: deps.UseCases,
			Metrics:  deps.Metrics,
			Ping:     deps.Ping,
			Version:  deps.Version,
		},
	}
	if deps.Config.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(deps.Config.RateLimit)
	}

	s.router = s.setupRouter()

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadTimeout:       s.getReadTimeout(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.getWriteTimeout(),
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root handler; tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is canceled or the
// server fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("catalog api listening", "address", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		// Use a new context for shutdown since the original is canceled
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.getShutdownTimeout())
		defer cancel()
		return s.Shutdown(shutdownCtx) //nolint:contextcheck // Intentionally new context for graceful shutdown
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.getShutdownTimeout())
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	if s.limiter != nil {
		if cerr := s.limiter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Address returns the bound address once started, or the configured one.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// getReadTimeout returns the read timeout with default.
func (s *Server) getReadTimeout() time.Duration {
	if s.config.ReadTimeout > 0 {
		return s.config.ReadTimeout
	}
	return 15 * time.Second
}

// getWriteTimeout returns the write timeout with default.
func (s *Server) getWriteTimeout() time.Duration {
	if s.config.WriteTimeout > 0 {
		return s.config.WriteTimeout
	}
	return 30 * time.Second
}

func (s *Server) getShutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout > 0 {
		return s.config.ShutdownTimeout
	}
	return 10 * time.Second
}
