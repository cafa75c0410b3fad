package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfydata276/reviewforge/pkg/models"
)

func ptr(s string) *string { return &s }

func TestParseDate_NilOrEmptyYieldsNil(t *testing.T) {
	d, err := parseDate(nil)
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDate(ptr(""))
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestParseDate_RejectsMalformedInput(t *testing.T) {
	_, err := parseDate(ptr("31-07-2026"))
	assert.Error(t, err)
}

func TestParseEndDate_ExpandsToEndOfDay(t *testing.T) {
	end, err := parseEndDate(ptr("2026-07-31"))
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Minute())
	assert.Equal(t, 59, end.Second())
}

func TestToEarlyAccessMode_DefaultsToIncludeForUnknownValue(t *testing.T) {
	assert.Equal(t, models.EarlyAccessExclude, toEarlyAccessMode("exclude"))
	assert.Equal(t, models.EarlyAccessOnly, toEarlyAccessMode("only"))
	assert.Equal(t, models.EarlyAccessInclude, toEarlyAccessMode("bogus"))
	assert.Equal(t, models.EarlyAccessInclude, toEarlyAccessMode(""))
}

func TestToFreeCopyMode_DefaultsToIncludeForUnknownValue(t *testing.T) {
	assert.Equal(t, models.FreeCopyExclude, toFreeCopyMode("exclude"))
	assert.Equal(t, models.FreeCopyInclude, toFreeCopyMode("anything else"))
}

func validSettingsPayload() SettingsPayload {
	return SettingsPayload{
		MaxReviews:   500,
		RateLimitRPM: 60,
		Language:     "english",
	}
}

func TestSettingsPayload_ToSettings_ParsesDatesAndEnums(t *testing.T) {
	p := validSettingsPayload()
	p.StartDate = ptr("2026-01-01")
	p.EndDate = ptr("2026-06-30")
	p.EarlyAccess = "only"

	s, err := p.toSettings()
	require.NoError(t, err)
	require.NotNil(t, s.StartDate)
	require.NotNil(t, s.EndDate)
	assert.Equal(t, 23, s.EndDate.Hour(), "end date must expand to end-of-day")
	assert.Equal(t, models.EarlyAccessOnly, s.EarlyAccess)
}

func TestSettingsPayload_ToSettings_PropagatesValidationError(t *testing.T) {
	p := validSettingsPayload()
	min, max := 50.0, 10.0 // inverted playtime window
	p.MinPlaytimeHours = &min
	p.MaxPlaytimeHours = &max

	_, err := p.toSettings()
	assert.Error(t, err)
}

func TestStartIngestRequest_ToRunRequest_KeysOverridesByAppID(t *testing.T) {
	req := StartIngestRequest{
		Global: validSettingsPayload(),
		Overrides: map[string]SettingsPayload{
			"1091500": validSettingsPayload(),
		},
	}

	run, err := req.toRunRequest()
	require.NoError(t, err)
	require.Contains(t, run.Overrides, int64(1091500))
}

func TestStartIngestRequest_ToRunRequest_RejectsNonNumericOverrideKey(t *testing.T) {
	req := StartIngestRequest{
		Global:    validSettingsPayload(),
		Overrides: map[string]SettingsPayload{"not-an-app-id": validSettingsPayload()},
	}

	_, err := req.toRunRequest()
	assert.Error(t, err)
}

func TestFilterPayload_ToFilter_CarriesPlaytimeBounds(t *testing.T) {
	min, max := 1.0, 100.0
	p := FilterPayload{MinPlaytimeHours: &min, MaxPlaytimeHours: &max, ReviewType: "positive"}

	f, err := p.toFilter()
	require.NoError(t, err)
	assert.Same(t, &min, f.MinPlaytimeHours)
	assert.Same(t, &max, f.MaxPlaytimeHours)
	assert.Equal(t, models.ReviewPositive, f.ReviewType)
}

func TestStartAnalysisRequest_ToStartAnalysisRequest_ValidatesReasoningEffort(t *testing.T) {
	req := StartAnalysisRequest{Provider: "openai", Model: "gpt-5", ReasoningEffort: "medium"}
	out, err := req.toStartAnalysisRequest()
	require.NoError(t, err)
	assert.Equal(t, models.ReasoningMedium, out.ReasoningEffort)
}

func TestStartAnalysisRequest_ToStartAnalysisRequest_RejectsUnknownReasoningEffort(t *testing.T) {
	req := StartAnalysisRequest{Provider: "openai", Model: "gpt-5", ReasoningEffort: "extreme"}
	_, err := req.toStartAnalysisRequest()
	assert.Error(t, err)
}

func TestStartAnalysisRequest_ToStartAnalysisRequest_EmptyReasoningEffortIsValid(t *testing.T) {
	req := StartAnalysisRequest{Provider: "openai", Model: "gpt-5"}
	out, err := req.toStartAnalysisRequest()
	require.NoError(t, err)
	assert.Equal(t, models.ReasoningEffort(""), out.ReasoningEffort)
}
