// Package api exposes the job-control HTTP surface: starting and watching
// ingestion runs, starting analysis jobs and reading their results, and a
// health endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comfydata276/reviewforge/pkg/ingest"
	"github.com/comfydata276/reviewforge/pkg/orchestrate"
	"github.com/comfydata276/reviewforge/pkg/store"
)

// Server wires the ingestion engine, analysis orchestrator, and store
// behind a gin.Engine.
type Server struct {
	engine *gin.Engine

	ingest       *ingest.Engine
	orchestrator *orchestrate.Orchestrator
	store        *store.Store
}

// NewServer builds a Server and registers its routes.
func NewServer(ing *ingest.Engine, orch *orchestrate.Orchestrator, st *store.Store) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	s := &Server{engine: engine, ingest: ing, orchestrator: orch, store: st}
	s.routes()
	return s
}

// Handler returns the http.Handler for this server, suitable for
// http.Server.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/ingest/start", s.startIngest)
		v1.POST("/ingest/stop", s.stopIngest)
		v1.GET("/ingest/status", s.ingestStatus)

		v1.POST("/analysis/start", s.startAnalysis)
		v1.GET("/analysis/jobs", s.listJobs)
		v1.GET("/analysis/jobs/:id", s.getJob)
		v1.GET("/analysis/jobs/:id/results", s.listResults)
		v1.POST("/analysis/jobs/:id/cancel", s.cancelJob)
		v1.POST("/analysis/backfill", s.backfill)
	}
}

// securityHeaders sets fixed hardening headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully within the given timeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
