package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const maxBodyBytes = 10 << 20

// ServerConfig holds the listener settings
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Server serves the API over HTTP/1.1 and cleartext HTTP/2
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer creates a new server around handler with the standard middleware
func NewServer(cfg ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	logger = logger.Named("server")
	wrapped := Chain(handler,
		Recover(logger),
		AccessLog(logger),
		CORS(cfg.AllowedOrigins),
		MaxBody(maxBodyBytes),
	)

	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      h2c.NewHandler(wrapped, &http2.Server{}),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
