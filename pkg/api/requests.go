package api

// SettingsPayload is the wire shape of one title's scrape settings,
// mirroring ingest.Settings field-for-field so JSON binding stays trivial.
type SettingsPayload struct {
	MaxReviews       int      `json:"max_reviews"`
	CompleteScraping bool     `json:"complete_scraping"`
	RateLimitRPM     int      `json:"rate_limit_rpm"`
	Language         string   `json:"language"`
	StartDate        *string  `json:"start_date"` // YYYY-MM-DD
	EndDate          *string  `json:"end_date"`   // YYYY-MM-DD, expands to end-of-day
	EarlyAccess      string   `json:"early_access"`
	ReceivedForFree  string   `json:"received_for_free"`
	MinPlaytimeHours *float64 `json:"min_playtime_hours"`
	MaxPlaytimeHours *float64 `json:"max_playtime_hours"`
}

// StartIngestRequest is the request body for POST /api/v1/ingest/start.
type StartIngestRequest struct {
	Global    SettingsPayload            `json:"global" binding:"required"`
	Overrides map[string]SettingsPayload `json:"overrides"`
}

// FilterPayload is the wire shape of models.ReviewFilter, shared by the
// analysis-start request and any future preview endpoint.
type FilterPayload struct {
	AppID            *int64   `json:"app_id"`
	Language         string   `json:"language"`
	StartDate        *string  `json:"start_date"`
	EndDate          *string  `json:"end_date"`
	EarlyAccess      string   `json:"early_access"`
	ReceivedForFree  string   `json:"received_for_free"`
	ReviewType       string   `json:"review_type"`
	MinPlaytimeHours *float64 `json:"min_playtime_hours"`
	MaxPlaytimeHours *float64 `json:"max_playtime_hours"`
}

// StartAnalysisRequest is the request body for POST /api/v1/analysis/start.
type StartAnalysisRequest struct {
	Name              string        `json:"name"`
	Filter            FilterPayload `json:"filter"`
	Provider          string        `json:"provider" binding:"required"`
	Model             string        `json:"model" binding:"required"`
	ReasoningEffort   string        `json:"reasoning_effort"`
	ReviewsPerBatch   int           `json:"reviews_per_batch"`
	BatchesPerRequest int           `json:"batches_per_request"`
	PromptName        string        `json:"prompt_name"`
}

// BackfillRequest is the request body for POST /api/v1/analysis/backfill.
type BackfillRequest struct {
	Limit int `json:"limit" binding:"required"`
}
