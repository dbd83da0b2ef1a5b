package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/noema-ai/noema/internal/ratelimit"
)

// ServerConfig holds everything the HTTP server needs.
type ServerConfig struct {
	Handlers     *Handlers
	MCPServer    *mcpserver.MCPServer // optional; mounted at /mcp when set
	RateLimiter  ratelimit.Limiter    // optional; applied to message handling
	Logger       *slog.Logger
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the Noema HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// New creates the server with all routes and middleware wired.
func New(cfg ServerConfig) *Server {
	mux := http.NewServeMux()

	// Only message handling is rate limited; health stays cheap and open.
	messages := http.Handler(http.HandlerFunc(cfg.Handlers.HandleMessages))
	if cfg.RateLimiter != nil {
		messages = rateLimitMiddleware(cfg.RateLimiter, cfg.Logger, messages)
	}
	mux.Handle("POST /v1/messages", messages)
	mux.HandleFunc("GET /health", cfg.Handlers.HandleHealth)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Assembled innermost-out: recovery closest to the handler, request ID
	// outermost so every layer sees it.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
