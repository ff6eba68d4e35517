package api

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the router in an http.Server.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates a server for the configured routes.
func NewServer(h *Handlers, opts RouteOptions) *Server {
	return &Server{handler: SetupRoutes(h, opts)}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
