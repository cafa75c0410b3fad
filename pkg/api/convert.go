package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/comfydata276/reviewforge/pkg/ingest"
	"github.com/comfydata276/reviewforge/pkg/models"
)

const dateLayout = "2006-01-02"

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", *s, err)
	}
	return &t, nil
}

// parseEndDate expands an inclusive end-of-day date, matching the ingestion
// engine's "end_date expands to end-of-day" rule.
func parseEndDate(s *string) (*time.Time, error) {
	t, err := parseDate(s)
	if err != nil || t == nil {
		return t, err
	}
	eod := t.Add(24*time.Hour - time.Nanosecond)
	return &eod, nil
}

func toEarlyAccessMode(s string) models.EarlyAccessMode {
	switch s {
	case string(models.EarlyAccessExclude), string(models.EarlyAccessOnly):
		return models.EarlyAccessMode(s)
	default:
		return models.EarlyAccessInclude
	}
}

func toFreeCopyMode(s string) models.FreeCopyMode {
	switch s {
	case string(models.FreeCopyExclude), string(models.FreeCopyOnly):
		return models.FreeCopyMode(s)
	default:
		return models.FreeCopyInclude
	}
}

// toSettings converts the wire payload into ingest.Settings.
func (p SettingsPayload) toSettings() (ingest.Settings, error) {
	start, err := parseDate(p.StartDate)
	if err != nil {
		return ingest.Settings{}, err
	}
	end, err := parseEndDate(p.EndDate)
	if err != nil {
		return ingest.Settings{}, err
	}
	s := ingest.Settings{
		MaxReviews:       p.MaxReviews,
		CompleteScraping: p.CompleteScraping,
		RateLimitRPM:     p.RateLimitRPM,
		Language:         p.Language,
		StartDate:        start,
		EndDate:          end,
		EarlyAccess:      toEarlyAccessMode(p.EarlyAccess),
		ReceivedForFree:  toFreeCopyMode(p.ReceivedForFree),
		MinPlaytimeHours: p.MinPlaytimeHours,
		MaxPlaytimeHours: p.MaxPlaytimeHours,
	}
	if err := s.Validate(); err != nil {
		return ingest.Settings{}, err
	}
	return s, nil
}

// toRunRequest converts a StartIngestRequest into ingest.RunRequest, keying
// overrides by app_id.
func (req StartIngestRequest) toRunRequest() (ingest.RunRequest, error) {
	global, err := req.Global.toSettings()
	if err != nil {
		return ingest.RunRequest{}, fmt.Errorf("global: %w", err)
	}
	overrides := make(map[int64]ingest.Settings, len(req.Overrides))
	for key, payload := range req.Overrides {
		appID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return ingest.RunRequest{}, fmt.Errorf("override key %q: not an app_id", key)
		}
		settings, err := payload.toSettings()
		if err != nil {
			return ingest.RunRequest{}, fmt.Errorf("override for app %d: %w", appID, err)
		}
		overrides[appID] = settings
	}
	return ingest.RunRequest{Global: global, Overrides: overrides}, nil
}

// toFilter converts the wire payload into models.ReviewFilter.
func (p FilterPayload) toFilter() (models.ReviewFilter, error) {
	start, err := parseDate(p.StartDate)
	if err != nil {
		return models.ReviewFilter{}, err
	}
	end, err := parseEndDate(p.EndDate)
	if err != nil {
		return models.ReviewFilter{}, err
	}
	return models.ReviewFilter{
		AppID:            p.AppID,
		Language:         p.Language,
		StartDate:        start,
		EndDate:          end,
		EarlyAccess:      toEarlyAccessMode(p.EarlyAccess),
		ReceivedForFree:  toFreeCopyMode(p.ReceivedForFree),
		ReviewType:       models.ReviewType(p.ReviewType),
		MinPlaytimeHours: p.MinPlaytimeHours,
		MaxPlaytimeHours: p.MaxPlaytimeHours,
	}, nil
}

// toStartAnalysisRequest converts the wire payload into
// models.StartAnalysisRequest.
func (req StartAnalysisRequest) toStartAnalysisRequest() (models.StartAnalysisRequest, error) {
	filter, err := req.Filter.toFilter()
	if err != nil {
		return models.StartAnalysisRequest{}, err
	}
	reasoning := models.ReasoningEffort(req.ReasoningEffort)
	switch reasoning {
	case "", models.ReasoningLow, models.ReasoningMedium, models.ReasoningHigh:
	default:
		return models.StartAnalysisRequest{}, fmt.Errorf("invalid reasoning_effort %q", req.ReasoningEffort)
	}
	return models.StartAnalysisRequest{
		Name:              req.Name,
		Filter:            filter,
		Provider:          req.Provider,
		Model:             req.Model,
		ReasoningEffort:   reasoning,
		ReviewsPerBatch:   req.ReviewsPerBatch,
		BatchesPerRequest: req.BatchesPerRequest,
		PromptName:        req.PromptName,
	}, nil
}
