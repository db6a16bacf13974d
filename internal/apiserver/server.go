// Package apiserver exposes the analysis workspace over HTTP: health,
// metrics, artifact reads and run triggering.
package apiserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auspex/internal/logging"
	"auspex/internal/pipeline"
	"auspex/internal/workspace"
)

// Runner runs one analysis pass. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// Server is the HTTP surface over the analysis workspace. Reads serve
// artifacts straight from disk; the only write path is POST
// /v1/analyze, which defers to the pipeline's single-flight guard.
type Server struct {
	addr    string
	paths   workspace.Paths
	runner  Runner
	version string
	router  *http.ServeMux
	server  *http.Server
	log     *logging.Logger
}

// New wires the routes and the HTTP server. Nothing listens until
// Start.
func New(addr string, paths workspace.Paths, runner Runner, version string) *Server {
	s := &Server{
		addr:    addr,
		paths:   paths,
		runner:  runner,
		version: version,
		router:  http.NewServeMux(),
		log:     logging.GetLogger("api"),
	}
	s.registerHandlers()

	// A full fleet analysis rides the analyze request, so the write
	// timeout is generous.
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.requestLogMiddleware(s.recoverMiddleware(s.router)),
		ReadTimeout:  time.Minute,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("GET /healthz", s.handleHealthz)
	s.router.Handle("GET /metrics", promhttp.Handler())
	s.router.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	s.router.HandleFunc("GET /v1/facts/{host}", s.handleFacts)
	s.router.HandleFunc("GET /v1/report", s.handleReport)
}

// Start binds the listener and begins serving. Implements
// lifecycle.Component; a bind failure fails the component so the
// manager can roll the rest back.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.log.Info("HTTP server listening on %s", ln.Addr())

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping HTTP server")

	done := make(chan error, 1)
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.server.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Error("HTTP server shutdown error: %v", err)
			return err
		}
		s.log.Info("HTTP server stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("HTTP server shutdown timeout")
		return ctx.Err()
	}
}

// Name implements lifecycle.Component.
func (s *Server) Name() string { return "http server" }

// Handler returns the middleware-wrapped router.
func (s *Server) Handler() http.Handler { return s.server.Handler }
