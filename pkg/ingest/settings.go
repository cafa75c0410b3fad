package ingest

import (
	"errors"
	"time"

	"github.com/comfydata276/reviewforge/pkg/models"
)

// errInvalidPlaytimeWindow is returned by Settings.Validate when
// max_playtime does not exceed min_playtime.
var errInvalidPlaytimeWindow = errors.New("ingest: max_playtime must be greater than min_playtime")

// Settings configures one title's scrape run. Per-title overrides are
// produced by merging a global Settings with a per-title override map.
type Settings struct {
	MaxReviews       int
	CompleteScraping bool // unbounded cap; MaxReviews is ignored when true
	RateLimitRPM     int
	Language         string
	StartDate        *time.Time
	EndDate          *time.Time
	EarlyAccess      models.EarlyAccessMode
	ReceivedForFree  models.FreeCopyMode
	MinPlaytimeHours *float64
	MaxPlaytimeHours *float64
}

// Validate enforces the one cross-field rule checked at job start: a
// playtime window only makes sense when the upper bound exceeds the lower
// one.
func (s Settings) Validate() error {
	if s.MinPlaytimeHours != nil && s.MaxPlaytimeHours != nil && *s.MaxPlaytimeHours <= *s.MinPlaytimeHours {
		return errInvalidPlaytimeWindow
	}
	return nil
}

// DefaultSettings returns the global defaults applied when a start payload
// omits a field.
func DefaultSettings() Settings {
	return Settings{
		MaxReviews:      1000,
		RateLimitRPM:    60,
		Language:        "english",
		EarlyAccess:     models.EarlyAccessInclude,
		ReceivedForFree: models.FreeCopyInclude,
	}
}

// Merge returns s with every non-zero field of o layered on top.
func (s Settings) Merge(o Settings) Settings {
	out := s
	if o.MaxReviews != 0 {
		out.MaxReviews = o.MaxReviews
	}
	if o.RateLimitRPM != 0 {
		out.RateLimitRPM = o.RateLimitRPM
	}
	if o.Language != "" {
		out.Language = o.Language
	}
	if o.StartDate != nil {
		out.StartDate = o.StartDate
	}
	if o.EndDate != nil {
		out.EndDate = o.EndDate
	}
	if o.EarlyAccess != "" {
		out.EarlyAccess = o.EarlyAccess
	}
	if o.ReceivedForFree != "" {
		out.ReceivedForFree = o.ReceivedForFree
	}
	if o.CompleteScraping {
		out.CompleteScraping = true
	}
	if o.MinPlaytimeHours != nil {
		out.MinPlaytimeHours = o.MinPlaytimeHours
	}
	if o.MaxPlaytimeHours != nil {
		out.MaxPlaytimeHours = o.MaxPlaytimeHours
	}
	return out
}

// ToFilter converts Settings into the shared review predicate grammar,
// used to count already-matching DB rows. Freshly fetched reviews are
// checked against the Settings fields directly, not through this filter.
func (s Settings) ToFilter(appID int64) models.ReviewFilter {
	return models.ReviewFilter{
		AppID:            &appID,
		Language:         s.Language,
		StartDate:        s.StartDate,
		EndDate:          s.EndDate,
		EarlyAccess:      s.EarlyAccess,
		ReceivedForFree:  s.ReceivedForFree,
		MinPlaytimeHours: s.MinPlaytimeHours,
		MaxPlaytimeHours: s.MaxPlaytimeHours,
	}
}
