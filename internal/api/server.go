// Package api provides the read-only HTTP surface of the monitor.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	monitorhandlers "github.com/nghyane/llm-mux-monitor/internal/api/handlers/monitor"
	"github.com/nghyane/llm-mux-monitor/internal/config"
	log "github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/nghyane/llm-mux-monitor/internal/monitor"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
)

// BasePath prefixes every route.
const BasePath = "/monitor"

type Server struct {
	engine  *gin.Engine
	server  *http.Server
	handler *monitorhandlers.Handler
}

// NewServer builds the engine and routes for cfg. The loader is shared with
// whatever keeps it refreshed.
func NewServer(cfg *config.Config, loader *monitor.Loader) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	window, err := usage.WindowFromDays(cfg.Monitor.Window)
	if err != nil {
		window = usage.DefaultWindow
	}

	s := &Server{
		engine: gin.New(),
		handler: monitorhandlers.NewHandler(loader, monitorhandlers.Options{
			Window:           window,
			Filter:           cfg.Monitor.APIFilter,
			RevealKeys:       cfg.Monitor.RevealKeys,
			RefreshPerMinute: cfg.Server.RefreshPerMinute,
			RefreshTimeout:   2 * cfg.Management.TimeoutDuration(),
		}),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.handler.Register(s.engine.Group(BasePath))
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, monitorhandlers.ErrorResponse{Error: monitorhandlers.ErrorBody{
			Code:    "not_found",
			Message: "no route for " + c.Request.Method + " " + c.Request.URL.Path,
		}})
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start serves until Stop is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	log.Infof("monitor API listening on http://%s%s", s.server.Addr, BasePath)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping monitor API")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
