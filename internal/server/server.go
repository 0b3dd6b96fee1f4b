// Package server exposes the bridge's boundary API over HTTP for hosts that
// talk to ptybridge as a daemon instead of embedding it as a library.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/termhost/ptybridge"
	"github.com/termhost/ptybridge/internal/config"
	"github.com/termhost/ptybridge/internal/logging"
	"github.com/termhost/ptybridge/internal/middleware"
	"github.com/termhost/ptybridge/internal/monitoring"
	"github.com/termhost/ptybridge/internal/ws"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router *gin.Engine
	bridge *ptybridge.Bridge
	log    *logging.Logger
	http   *http.Server
}

// New creates a server around the given bridge. Nil arguments fall back to
// defaults; passing a nil bridge creates a fresh one from cfg.
func New(cfg *config.Config, log *logging.Logger, bridge *ptybridge.Bridge) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.Nop()
	}
	if bridge == nil {
		bridge = ptybridge.New(cfg, log)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(bridge.Metrics()))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := NewHandlers(bridge, log, cfg.Session.ReadChunk)
	wsHandler := ws.NewHandler(bridge, log, cfg.Session.ReadChunk)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(bridge.Metrics().Handler()))

	router.POST("/sessions", handlers.Spawn)
	router.GET("/sessions", handlers.List)
	router.GET("/sessions/:id", handlers.Get)
	router.POST("/sessions/:id/input", handlers.Input)
	router.GET("/sessions/:id/output", handlers.Output)
	router.POST("/sessions/:id/resize", handlers.Resize)
	router.POST("/sessions/:id/kill", handlers.Kill)
	router.DELETE("/sessions/:id", handlers.Close)
	router.GET("/sessions/:id/attach", wsHandler.HandleAttach)

	return &Server{
		router: router,
		bridge: bridge,
		log:    log,
	}
}

// Router returns the underlying gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Bridge returns the bridge this server fronts.
func (s *Server) Bridge() *ptybridge.Bridge { return s.bridge }

// Run starts serving on addr and blocks until the server stops.
func (s *Server) Run(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the HTTP server down and kills every live session.
func (s *Server) Close() error {
	var err error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.http.Shutdown(ctx)
	}
	s.bridge.Shutdown()
	return err
}
