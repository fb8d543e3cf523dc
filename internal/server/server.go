// Package server exposes the management API over HTTP: instance lifecycle,
// template and credential tables, system stats, and a websocket status feed.
// Handlers reach the domain through the api locator, so the server has no
// compile-time dependency on the orchestrator.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"menagerie/internal/events"
	"menagerie/pkg/logging"
)

// Server is the management API server.
type Server struct {
	addr string
	bus  *events.Bus
	http *http.Server
}

// New creates a management server listening on addr. The bus feeds the
// websocket status endpoint.
func New(addr string, bus *events.Bus) *Server {
	s := &Server{addr: addr, bus: bus}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/instances", s.handleListInstances)
	mux.HandleFunc("POST /api/instances", s.handleCreateInstance)
	mux.HandleFunc("GET /api/instances/{id}", s.handleGetInstance)
	mux.HandleFunc("PUT /api/instances/{id}", s.handleUpdateInstance)
	mux.HandleFunc("DELETE /api/instances/{id}", s.handleDeleteInstance)
	mux.HandleFunc("POST /api/instances/{id}/start", s.handleStartInstance)
	mux.HandleFunc("POST /api/instances/{id}/stop", s.handleStopInstance)
	mux.HandleFunc("POST /api/instances/{id}/restart", s.handleRestartInstance)

	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /api/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("PUT /api/templates/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/templates/{id}", s.handleDeleteTemplate)

	mux.HandleFunc("GET /api/credentials", s.handleListCredentials)
	mux.HandleFunc("POST /api/credentials", s.handleAddCredential)
	mux.HandleFunc("POST /api/credentials/{id}/deactivate", s.handleDeactivateCredential)

	mux.HandleFunc("GET /api/system/stats", s.handleStats)
	mux.HandleFunc("GET /ws", s.handleStatusFeed)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	logging.Info("Server", "Management API listening on %s", listener.Addr())
	if err := s.http.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
