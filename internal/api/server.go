package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sporenet/sporenet/internal/logging"
	"github.com/sporenet/sporenet/internal/ratelimit"
	"github.com/sporenet/sporenet/pkg/config"
	"github.com/sporenet/sporenet/pkg/sporenet"
)

// Server is the REST API server exposing the Memory, Knowledge, and
// Jobs façades over HTTP.
type Server struct {
	router     *gin.Engine
	engine     *sporenet.Engine
	config     *config.Config
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer builds a Server around an already-wired sporenet.Engine.
func NewServer(eng *sporenet.Engine, cfg *config.Config) *Server {
	log := logging.GetLogger("api")
	log.Info("initializing REST API server")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.RestAPI.CORS {
		log.Debug("enabling CORS")
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders: []string{"Content-Length", "Retry-After"},
			MaxAge:        12 * time.Hour,
		}

		switch {
		case len(cfg.RestAPI.AllowOrigins) > 0:
			corsConfig.AllowOrigins = cfg.RestAPI.AllowOrigins
		case cfg.RestAPI.APIKey != "":
			corsConfig.AllowOrigins = []string{
				"http://localhost:*",
				"http://127.0.0.1:*",
				"https://localhost:*",
				"https://127.0.0.1:*",
			}
			corsConfig.AllowWildcard = true
		default:
			corsConfig.AllowAllOrigins = true
		}

		router.Use(cors.New(corsConfig))
	}

	if cfg.RestAPI.APIKey != "" {
		log.Info("API key authentication enabled")
		router.Use(APIKeyAuthMiddleware(cfg.RestAPI.APIKey))
	}

	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled")
		limiter := ratelimit.NewLimiter(&cfg.RateLimit)
		router.Use(RateLimitMiddleware(limiter))
	}

	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	server := &Server{
		router: router,
		engine: eng,
		config: cfg,
		log:    log,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.healthHandler)

		// Memory
		api.POST("/memory/remember", s.remember)
		api.GET("/memory/recall", s.recall)
		api.GET("/memory/context", s.context)
		api.GET("/memory/beliefs", s.listBeliefs)
		api.GET("/memory/beliefs/:id/history", s.beliefHistory)
		api.DELETE("/memory/beliefs/:id", s.forgetBelief)
		api.POST("/memory/prune", s.prune)
		api.POST("/memory/reflect", s.reflect)
		api.POST("/memory/synthesize", s.synthesize)
		api.GET("/memory/stats", s.memoryStats)
		api.GET("/memory/export", s.exportMemory)
		api.POST("/memory/import", s.importMemory)

		// Knowledge
		api.POST("/knowledge/learn", s.learn)
		api.GET("/knowledge/search", s.searchKnowledge)
		api.GET("/knowledge/sources", s.listSources)
		api.GET("/knowledge/sources/:id", s.sourceChunks)
		api.DELETE("/knowledge/sources/:id", s.forgetSource)
		api.POST("/knowledge/sources/:id/reindex", s.reindexSource)
		api.POST("/knowledge/reindex", s.reindexAll)

		// Background jobs
		api.POST("/jobs", s.upsertJob)
		api.GET("/jobs/:id", s.getJob)
		api.GET("/jobs", s.listJobs)
		api.PATCH("/jobs/:id", s.updateJobStatus)
		api.DELETE("/jobs/completed", s.clearCompletedJobs)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	SuccessResponse(c, "ok", gin.H{"status": "healthy"})
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		availablePort, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return fmt.Errorf("failed to find available port: %w", err)
		}
		port = availablePort
	}

	addr := fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	s.log.Info("starting REST API server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext starts the server and blocks until ctx is cancelled
// or the server fails, then shuts down gracefully within shutdownTimeout.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		availablePort, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return fmt.Errorf("failed to find available port: %w", err)
		}
		port = availablePort
	}

	addr := fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting REST API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping REST API server")
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error("server shutdown error", "error", err)
			return err
		}
	}
	return nil
}

// Router exposes the underlying Gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func findAvailablePort(startPort int) (int, error) {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, startPort+100)
}
