package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"renovisio_backend/logging"
)

// ServerConfig configures the API server.
type ServerConfig struct {
	// Host to bind to (default: empty, all interfaces)
	Host string

	// Port to listen on (default: 8080)
	Port int

	// ReadTimeout for HTTP requests (default: 30s)
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses. Generation requests hold the
	// connection for the full pipeline run, so this must exceed the
	// pipeline budget (default: 120s).
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections (default: 120s)
	IdleTimeout time.Duration

	// ShutdownTimeout for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration

	// ArtifactDir, when set, serves stored images under /artifacts/
	ArtifactDir string
}

// DefaultServerConfig returns a ServerConfig with standard timeouts.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server hosting the visualization API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	config     ServerConfig
	logger     *logging.Logger
}

// NewServer wires the API, middleware and artifact file serving into an
// http.Server ready to start.
func NewServer(config ServerConfig, api *VisualizationAPI, logger *logging.Logger) *Server {
	if config.Port <= 0 {
		config.Port = DefaultServerConfig().Port
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultServerConfig().ShutdownTimeout
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	mux.HandleFunc("/health", handleHealth)

	if config.ArtifactDir != "" {
		mux.Handle("/artifacts/",
			http.StripPrefix("/artifacts/", http.FileServer(http.Dir(config.ArtifactDir))))
	}

	log := logger.Named("server")
	middleware := NewRequestLogging(logger, "/health")

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      middleware.Handler(mux),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		mux:    mux,
		config: config,
		logger: log,
	}
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("API server starting", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	return nil
}

// Addr returns the server's bind address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
