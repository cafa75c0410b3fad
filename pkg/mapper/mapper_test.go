package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk_StructuredOpenAIShape(t *testing.T) {
	raw := map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": "mostly positive"}},
		},
		"usage": map[string]any{
			"prompt_tokens":     float64(120),
			"completion_tokens": float64(30),
			"total_tokens":      float64(150),
		},
	}

	m := ParseRaw(raw).Walk()

	require.NotNil(t, m.AnalysedReview)
	assert.Equal(t, "mostly positive", *m.AnalysedReview)
	require.NotNil(t, m.InputTokens)
	assert.Equal(t, 120, *m.InputTokens)
	require.NotNil(t, m.OutputTokens)
	assert.Equal(t, 30, *m.OutputTokens)
	require.NotNil(t, m.TotalTokens)
	assert.Equal(t, 150, *m.TotalTokens)
}

func TestWalk_TextContainingJSONEmbeddedInProse(t *testing.T) {
	raw := `Here is the result: {"choices":[{"text":"negative overall"}]} -- end`

	m := ParseRaw(raw).Walk()

	require.NotNil(t, m.AnalysedReview)
	assert.Equal(t, "negative overall", *m.AnalysedReview)
}

func TestWalk_EmbeddedObjectWithUsageAndTrailingText(t *testing.T) {
	raw := `...{"choices":[{"message":{"content":"OK"}}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}...`

	m := ParseRaw(raw).Walk()

	require.NotNil(t, m.AnalysedReview)
	assert.Equal(t, "OK", *m.AnalysedReview)
	require.NotNil(t, m.InputTokens)
	assert.Equal(t, 3, *m.InputTokens)
	require.NotNil(t, m.OutputTokens)
	assert.Equal(t, 4, *m.OutputTokens)
	require.NotNil(t, m.TotalTokens)
	assert.Equal(t, 7, *m.TotalTokens)
}

func TestWalk_UnparseableTextRetainsRawOutputWithNilFields(t *testing.T) {
	raw := "not json at all, just a plain analysis string"

	m := ParseRaw(raw).Walk()

	assert.Equal(t, raw, m.AnalysisOutput)
	assert.Nil(t, m.AnalysedReview)
	assert.Nil(t, m.InputTokens)
	assert.Nil(t, m.OutputTokens)
	assert.Nil(t, m.TotalTokens)
}

func TestWalk_OutputTokensFallsBackToAlternateKeyName(t *testing.T) {
	raw := map[string]any{
		"usage": map[string]any{"output_tokens": float64(42)},
	}

	m := ParseRaw(raw).Walk()

	require.NotNil(t, m.OutputTokens)
	assert.Equal(t, 42, *m.OutputTokens)
}

func TestWalk_NestedUsageAndChoicesAreFoundRecursively(t *testing.T) {
	raw := map[string]any{
		"response": map[string]any{
			"body": map[string]any{
				"choices": []any{
					map[string]any{"msg": map[string]any{"text": "it's good"}},
				},
				"usage": map[string]any{"prompt_tokens": float64(5), "total_tokens": float64(8)},
			},
		},
	}

	m := ParseRaw(raw).Walk()

	require.NotNil(t, m.AnalysedReview)
	assert.Equal(t, "it's good", *m.AnalysedReview)
	require.NotNil(t, m.InputTokens)
	assert.Equal(t, 5, *m.InputTokens)
}

func TestWalk_IsIdempotentOnReserializedOutput(t *testing.T) {
	raw := map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": "ok"}}},
	}

	first := ParseRaw(raw).Walk()
	second := ParseRaw(first.AnalysisOutput).Walk()

	require.NotNil(t, first.AnalysedReview)
	require.NotNil(t, second.AnalysedReview)
	assert.Equal(t, *first.AnalysedReview, *second.AnalysedReview)
	assert.Equal(t, first.AnalysisOutput, second.AnalysisOutput)
}
