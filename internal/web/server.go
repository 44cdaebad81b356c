// Package web serves the review commands as a JSON API.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout covers drafting and publishing, which wait on external APIs
	WriteTimeout time.Duration

	// IdleTimeout is the maximum time to wait for the next request when keep-alives are enabled
	IdleTimeout time.Duration

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
	MaxHeaderBytes int
}

// DefaultServerConfig returns sensible defaults for production use
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   120 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
}

// Server wraps an HTTP server around the Router
type Server struct {
	addr       string
	config     ServerConfig
	router     *Router
	httpServer *http.Server
}

// NewServer creates a new Server with default configuration
func NewServer(addr string, router *Router) *Server {
	return NewServerWithConfig(addr, router, DefaultServerConfig())
}

// NewServerWithConfig creates a new Server with custom configuration
func NewServerWithConfig(addr string, router *Router, config ServerConfig) *Server {
	if addr == "" {
		addr = ":8080"
	}

	return &Server{
		addr:   addr,
		config: config,
		router: router,
		httpServer: &http.Server{
			Addr:           addr,
			Handler:        router,
			ReadTimeout:    config.ReadTimeout,
			WriteTimeout:   config.WriteTimeout,
			IdleTimeout:    config.IdleTimeout,
			MaxHeaderBytes: config.MaxHeaderBytes,
		},
	}
}

// Handler returns the HTTP handler (the Router)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server without interrupting active connections
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address
func (s *Server) Addr() string {
	return s.addr
}
