// Package provider implements the pluggable LLM backend interface and the
// reference OpenAI Batch API adapter.
package provider

import (
	"context"

	"github.com/comfydata276/reviewforge/pkg/models"
)

// Result is one provider response, still in raw/unmapped form. The
// orchestrator hands it to pkg/mapper.
type Result struct {
	Raw any // map[string]any (decoded JSON) or string
	Err error
}

// ProgressFunc is invoked by a batch call as items complete, if the adapter
// supports incremental progress; completed/total are counts, not IDs.
type ProgressFunc func(completed, total int)

// Provider is the polymorphic interface over LLM backends. AnalyzeBatch's
// returned slice must align 1:1 with inputs positionally — adapters that
// receive unordered responses (e.g. a provider batch API) are responsible
// for re-aligning them before returning.
type Provider interface {
	Name() string
	AnalyzeBatch(ctx context.Context, inputs []string, prompt, model string, effort models.ReasoningEffort, progress ProgressFunc) ([]Result, error)
	AnalyzeSingle(ctx context.Context, fullPrompt, model string, effort models.ReasoningEffort) Result
}

// BuildPrompt concatenates the job prompt with a single review's text.
func BuildPrompt(prompt, review string) string {
	return prompt + "\n\nReview:\n" + review
}
