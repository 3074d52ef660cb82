// Package server provides the gateway's top-level HTTP server: route
// wiring, the middleware chain, and process lifecycle (start, graceful
// shutdown, signal handling).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/modelgate/modelgate/internal/admin"
	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/proxy"
	"github.com/modelgate/modelgate/internal/proxy/middleware"
	"github.com/modelgate/modelgate/internal/security/access"
	"github.com/modelgate/modelgate/internal/telemetry/metrics"
)

// BuildInfo carries the binary's version metadata, set by cmd/modelgate
// from its own build-flag-populated vars, for GET /version.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// defaultShutdownTimeout bounds how long Shutdown waits for in-flight
// requests to finish before forcing connections closed.
const defaultShutdownTimeout = 10 * time.Second

// Server is the gateway's northbound HTTP server. It owns nothing about
// the proxy path, the admin surface, or the Access Filter beyond what it
// needs to mount them; all of that logic lives in their own packages.
type Server struct {
	cfg        *config.Config
	build      BuildInfo
	httpServer *http.Server

	shuttingDown *atomic.Bool
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
}

// NewServer assembles the full route tree and middleware chain and returns
// a Server ready to Start. proxyHandler serves the OpenAI-compatible
// forwarding surface; adminHandlers serves /health, /admin/*, and /debug/*;
// collector, if non-nil, is also mounted at /metrics. shuttingDown is a
// flag the caller owns and shares with adminHandlers' Health endpoint;
// Shutdown sets it before draining connections.
func NewServer(cfg *config.Config, proxyHandler http.Handler, adminHandlers *admin.Handlers, collector *metrics.Collector, shuttingDown *atomic.Bool, build BuildInfo) *Server {
	s := &Server{
		cfg:          cfg,
		build:        build,
		shuttingDown: shuttingDown,
	}

	handler := s.buildHandler(proxyHandler, adminHandlers, collector)
	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port)),
		Handler: handler,
	}

	return s
}

// buildHandler wires the Access Filter and route table behind the shared
// middleware chain. TimeoutMiddleware is deliberately not applied here:
// the proxy path enforces its own proxy_timeout/stream_timeout per
// request, and /debug/stream is a long-lived SSE connection by design, so
// a single blanket deadline would fight both.
func (s *Server) buildHandler(proxyHandler http.Handler, adminHandlers *admin.Handlers, collector *metrics.Collector) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", adminHandlers.Health)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/admin/models", adminHandlers.ListModels)
	mux.HandleFunc("/admin/models/load", adminHandlers.LoadModel)
	mux.HandleFunc("/admin/models/unload", adminHandlers.UnloadModel)
	mux.HandleFunc("/admin/models/activate", adminHandlers.ActivateModel)
	mux.HandleFunc("/debug/status", adminHandlers.DebugStatus)
	mux.HandleFunc("/debug/metrics", adminHandlers.DebugMetrics)
	mux.HandleFunc("/debug/stream", adminHandlers.DebugStream)

	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}

	// Everything else falls through to the proxy path; proxyHandler itself
	// 404s on paths NormalizePath doesn't recognize.
	mux.Handle("/", proxyHandler)

	filter := access.NewFilter(&s.cfg.Security)
	var handler http.Handler = filter.Handle(mux)

	handler = middleware.CORSMiddleware(s.convertCORSConfig())(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// handleVersion implements GET /version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]string{
		"version":    s.build.Version,
		"git_commit": s.build.GitCommit,
		"build_date": s.build.BuildDate,
	})
}

// Start starts the HTTP server and blocks until the context is cancelled,
// a shutdown signal arrives, or the server fails to serve.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway server", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully drains the server: it marks the process as shutting
// down (so /health starts reporting it), stops accepting new connections,
// and waits up to defaultShutdownTimeout for in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if s.shuttingDown != nil {
			s.shuttingDown.Store(true)
		}

		slog.Info("initiating graceful shutdown", "timeout", defaultShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is currently serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully wired HTTP handler, for use in tests without
// binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// convertCORSConfig converts config.CORSConfig to middleware.CORSConfig.
func (s *Server) convertCORSConfig() *middleware.CORSConfig {
	c := s.cfg.Proxy.CORS
	return &middleware.CORSConfig{
		Enabled:          c.Enabled,
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods,
		AllowedHeaders:   c.AllowedHeaders,
		ExposedHeaders:   c.ExposedHeaders,
		MaxAge:           c.MaxAge,
		AllowCredentials: c.AllowCredentials,
	}
}
