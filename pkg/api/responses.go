package api

import "github.com/comfydata276/reviewforge/pkg/ingest"

// IngestStatusResponse mirrors ingest.Snapshot for the job-control surface.
type IngestStatusResponse struct {
	IsRunning          bool     `json:"is_running"`
	CurrentGame        *Game    `json:"current_game,omitempty"`
	CurrentGameScraped int      `json:"current_game_scraped"`
	CurrentGameTotal   int      `json:"current_game_total"`
	GlobalScraped      int      `json:"global_scraped"`
	GlobalTotal        int      `json:"global_total"`
	AvgRequestSeconds  float64  `json:"avg_request_seconds"`
	RequestsMade       int      `json:"requests_made"`
	RateLimitRPM       int      `json:"rate_limit_rpm"`
	ETASeconds         float64  `json:"eta_seconds"`
	StopRequested      bool     `json:"stop_requested"`
	Logs               []string `json:"logs"`
}

// Game identifies the title an ingest run is currently scraping.
type Game struct {
	AppID int64  `json:"app_id"`
	Name  string `json:"name"`
}

// NewIngestStatusResponse projects an ingest.Snapshot onto the wire shape.
func NewIngestStatusResponse(snap ingest.Snapshot) IngestStatusResponse {
	resp := IngestStatusResponse{
		IsRunning:          snap.IsRunning,
		CurrentGameScraped: snap.CurrentGameScraped,
		CurrentGameTotal:   snap.CurrentGameTotal,
		GlobalScraped:      snap.GlobalScraped,
		GlobalTotal:        snap.GlobalTotal,
		AvgRequestSeconds:  snap.AvgRequestSeconds,
		RequestsMade:       snap.RequestsMade,
		RateLimitRPM:       snap.RateLimitRPM,
		ETASeconds:         snap.ETASeconds(),
		StopRequested:      snap.StopRequested,
		Logs:               snap.Logs,
	}
	if snap.CurrentGame != nil {
		resp.CurrentGame = &Game{AppID: snap.CurrentGame.AppID, Name: snap.CurrentGame.Name}
	}
	return resp
}

// StartJobResponse is returned by POST /api/v1/analysis/start.
type StartJobResponse struct {
	JobID int64 `json:"job_id"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}

// HealthCheck is the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
