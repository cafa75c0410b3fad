package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfydata276/reviewforge/pkg/models"
)

func TestSettings_Validate_RejectsInvertedPlaytimeWindow(t *testing.T) {
	min, max := 10.0, 5.0
	s := Settings{MinPlaytimeHours: &min, MaxPlaytimeHours: &max}
	assert.ErrorIs(t, s.Validate(), errInvalidPlaytimeWindow)
}

func TestSettings_Validate_AcceptsAscendingWindowOrOneSidedBound(t *testing.T) {
	min, max := 5.0, 10.0
	require.NoError(t, (Settings{MinPlaytimeHours: &min, MaxPlaytimeHours: &max}).Validate())
	require.NoError(t, (Settings{MinPlaytimeHours: &min}).Validate())
	require.NoError(t, (Settings{}).Validate())
}

func TestSettings_Merge_OverridesOnlyNonZeroFields(t *testing.T) {
	global := DefaultSettings()
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	override := Settings{
		Language:  "german",
		StartDate: &start,
	}

	merged := global.Merge(override)

	assert.Equal(t, "german", merged.Language)
	assert.Equal(t, &start, merged.StartDate)
	assert.Equal(t, global.MaxReviews, merged.MaxReviews, "untouched field keeps the global value")
	assert.Equal(t, global.RateLimitRPM, merged.RateLimitRPM)
}

func TestSettings_Merge_CompleteScrapingIsStickyOnceSet(t *testing.T) {
	global := Settings{CompleteScraping: true}
	merged := global.Merge(Settings{})
	assert.True(t, merged.CompleteScraping, "override omitting the flag must not clear it")
}

func TestSettings_ToFilter_CarriesPlaytimeBounds(t *testing.T) {
	min, max := 2.0, 8.0
	s := Settings{
		Language:         "english",
		EarlyAccess:      models.EarlyAccessOnly,
		ReceivedForFree:  models.FreeCopyExclude,
		MinPlaytimeHours: &min,
		MaxPlaytimeHours: &max,
	}

	f := s.ToFilter(42)

	require.NotNil(t, f.AppID)
	assert.Equal(t, int64(42), *f.AppID)
	assert.Equal(t, models.EarlyAccessOnly, f.EarlyAccess)
	assert.Equal(t, models.FreeCopyExclude, f.ReceivedForFree)
	assert.Same(t, &min, f.MinPlaytimeHours)
	assert.Same(t, &max, f.MaxPlaytimeHours)
}
