// Package api implements HydroChat's HTTP surface (spec 6): the
// bearer-authenticated converse and stats endpoints plus an
// unauthenticated health check, built on Gin exactly as the teacher's
// cmd/tarsy/main.go wires its own router (gin.Default(), router.GET/POST).
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hydrochat/hydrochat/pkg/config"
	"github.com/hydrochat/hydrochat/pkg/graph"
	"github.com/hydrochat/hydrochat/pkg/metrics"
	"github.com/hydrochat/hydrochat/pkg/session"
	"github.com/hydrochat/hydrochat/pkg/version"
)

// Server is the HydroChat HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	cfg     *config.Config
	store   session.Store
	exec    *graph.Executor
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Server and registers every route.
func New(cfg *config.Config, store session.Store, exec *graph.Executor, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(securityHeaders())

	s := &Server{router: router, cfg: cfg, store: store, exec: exec, metrics: m, now: time.Now}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/hydrochat/health", s.handleHealth)

	authed := s.router.Group("/hydrochat")
	authed.Use(bearerAuth(s.cfg.AuthBearerToken))
	authed.POST("/converse/", s.handleConverse)
	authed.GET("/stats/", s.handleStats)
}

// Router exposes the underlying engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// StartWithListener runs the HTTP server on a pre-created listener,
// used by tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth implements the supplemented GET /hydrochat/health
// endpoint (unauthenticated): process liveness plus a light operational
// snapshot, the teacher's own health-check shape (cmd/tarsy/main.go)
// trimmed to HydroChat's component set.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": version.Full(),
		"stats":   s.cfg.Stats(),
	})
}
