package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/comfydata276/reviewforge/pkg/models"
)

func TestParamsHash_StableForEqualSettings(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	a := Settings{
		MaxReviews:  500, // traversal-irrelevant, must not affect the hash
		Language:    "english",
		StartDate:   &start,
		EndDate:     &end,
		EarlyAccess: models.EarlyAccessExclude,
	}
	b := Settings{
		MaxReviews:  999,
		Language:    "english",
		StartDate:   &start,
		EndDate:     &end,
		EarlyAccess: models.EarlyAccessExclude,
	}

	assert.Equal(t, ParamsHash(a), ParamsHash(b))
}

func TestParamsHash_DiffersOnTraversalAffectingField(t *testing.T) {
	base := Settings{Language: "english", EarlyAccess: models.EarlyAccessInclude}
	other := base
	other.EarlyAccess = models.EarlyAccessOnly

	assert.NotEqual(t, ParamsHash(base), ParamsHash(other))
}

func TestParamsHash_IgnoresPlaytimeBounds(t *testing.T) {
	min1, max1 := 1.0, 10.0
	min2, max2 := 5.0, 50.0

	a := Settings{Language: "english", MinPlaytimeHours: &min1, MaxPlaytimeHours: &max1}
	b := Settings{Language: "english", MinPlaytimeHours: &min2, MaxPlaytimeHours: &max2}

	assert.Equal(t, ParamsHash(a), ParamsHash(b))
}
