package http_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

type ServerConfig struct {
	Port int
	// RateLimit is the number of API requests per minute allowed per client IP.
	RateLimit int
	// AdminToken protects the /admin routes with a bearer token when set.
	AdminToken string
}

// HTTPServer is the HTTP server struct that will serve the API
type HTTPServer struct {
	logger *logger.Logger

	router *gin.Engine
	port   int

	// server is the underlying HTTP server
	server *http.Server

	explorer   models.ExplorerI
	feed       *Feed
	limiter    *RateLimiter
	adminToken string
}

// corsMiddleware adds CORS headers to all responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// NewHTTPServer creates a new HTTP server instance. The feed may be nil, in
// which case the websocket route is not registered.
func NewHTTPServer(explorer models.ExplorerI, feed *Feed, cfg ServerConfig, logger *logger.Logger) *HTTPServer {
	router := gin.Default()
	router.Use(corsMiddleware())

	server := &HTTPServer{
		logger:     logger,
		router:     router,
		port:       cfg.Port,
		explorer:   explorer,
		feed:       feed,
		limiter:    NewRateLimiter(cfg.RateLimit, logger.Named("ratelimit")),
		adminToken: cfg.AdminToken,
	}
	server.routes()

	return server
}

// Handler exposes the router, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *HTTPServer) Start() {
	addr := fmt.Sprintf("0.0.0.0:%v", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "address", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal("Failed to start the HTTP server", "error", err)
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	s.limiter.Stop()
	if s.feed != nil {
		s.feed.Close()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}

var _ models.APIServer = (*HTTPServer)(nil)
