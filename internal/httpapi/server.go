// Package httpapi exposes the coordination pipeline over HTTP: task
// submission, approval resolution, health, and Prometheus metrics.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlas-agent/atlas/internal/approval"
	"github.com/atlas-agent/atlas/internal/coordinator"
)

// Server is the HTTP surface over a Coordinator and Approval workflow.
type Server struct {
	addr       string
	coord      *coordinator.Coordinator
	approvals  *approval.Workflow
	startedAt  time.Time

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New builds a Server. coord and approvals must already be wired together
// (approvals.route should call coord.RouteAction).
func New(addr string, coord *coordinator.Coordinator, approvals *approval.Workflow) *Server {
	return &Server{addr: addr, coord: coord, approvals: approvals, startedAt: time.Now()}
}

// Router builds the chi.Router backing this Server, exported separately so
// tests can exercise handlers without a live listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/task", s.handleTask)
	r.Post("/approval/{id}/approve", s.handleApprove)
	r.Post("/approval/{id}/reject", s.handleReject)
	r.Get("/approval", s.handlePendingApprovals)

	return r
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("httpapi: listen: %w", err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: serve: %w", err)
	}
	return nil
}

// Addr returns the live listener address, useful in tests that bind ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
