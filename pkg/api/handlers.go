package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/comfydata276/reviewforge/pkg/ingest"
)

// lastRateLimitRPM is read back by ingestStatus so the ETA calculation has
// a theoretical throughput figure to compare the observed rate against,
// without the status endpoint needing its own copy of the run's settings.
var lastRateLimitRPM atomic.Int64

// startIngest starts a catalog-wide scrape run in the background and
// returns immediately. A second call while a run is already in flight
// returns 409, matching ingest.ErrAlreadyRunning.
func (s *Server) startIngest(c *gin.Context) {
	var body StartIngestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runReq, err := body.toRunRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.ingest.Progress.Snapshot(0).IsRunning {
		writeError(c, ingest.ErrAlreadyRunning)
		return
	}

	lastRateLimitRPM.Store(int64(runReq.Global.RateLimitRPM))

	go func() {
		if err := s.ingest.Run(context.Background(), runReq); err != nil {
			slog.Error("ingest run failed", "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// stopIngest requests cooperative stop of an in-flight run. It is a no-op
// if no run is active.
func (s *Server) stopIngest(c *gin.Context) {
	s.ingest.Progress.RequestStop()
	c.JSON(http.StatusAccepted, gin.H{"status": "stop_requested"})
}

// ingestStatus reports the live state of the current (or most recent) run.
func (s *Server) ingestStatus(c *gin.Context) {
	snap := s.ingest.Progress.Snapshot(int(lastRateLimitRPM.Load()))
	c.JSON(http.StatusOK, NewIngestStatusResponse(snap))
}

// startAnalysis materializes an analysis job and dispatches it to the
// requested provider in the background, returning its job ID immediately.
func (s *Server) startAnalysis(c *gin.Context) {
	var body StartAnalysisRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := body.toStartAnalysisRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := s.orchestrator.StartJob(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, StartJobResponse{JobID: jobID})
}

func (s *Server) listJobs(c *gin.Context) {
	jobs, err := s.orchestrator.ListJobs(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) getJob(c *gin.Context) {
	jobID, err := parseJobID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.orchestrator.GetJob(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) listResults(c *gin.Context) {
	jobID, err := parseJobID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.orchestrator.ListResults(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) cancelJob(c *gin.Context) {
	jobID, err := parseJobID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.orchestrator.CancelJob(jobID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancel_requested"})
}

// backfill re-runs the mapper over previously unmapped results, repairing
// mapper or game-name bugs without re-calling the provider.
func (s *Server) backfill(c *gin.Context) {
	var body BackfillRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := s.orchestrator.Backfill(c.Request.Context(), body.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remapped": count})
}

// health reports store connectivity alongside a fixed "healthy" for the process
// itself.
func (s *Server) health(c *gin.Context) {
	checks := map[string]HealthCheck{
		"process": {Status: "healthy"},
	}

	status := "healthy"
	dbStatus, err := s.store.Health(c.Request.Context())
	if err != nil {
		status = "unhealthy"
		checks["database"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: dbStatus.Status}
	}

	httpStatus := http.StatusOK
	if status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthResponse{Status: status, Checks: checks})
}

func parseJobID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
