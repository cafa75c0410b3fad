package orchestrate

import (
	"context"
	"fmt"

	"github.com/comfydata276/reviewforge/pkg/mapper"
)

// Backfill re-runs the mapper over results whose raw provider output was
// saved but never successfully mapped (covers mapper fixes landing after a
// job has already completed), and repairs a missing game_name snapshot via
// the review's current title. Bounded by limit; returns the number of rows
// touched.
func (o *Orchestrator) Backfill(ctx context.Context, limit int) (int, error) {
	unmapped, err := o.store.ListUnmapped(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unmapped results: %w", err)
	}

	touched := 0
	for _, r := range unmapped {
		if r.AnalysisOutput == nil {
			continue
		}
		mapped := mapper.ParseRaw(decodeRaw(*r.AnalysisOutput)).Walk()
		if mapped.AnalysedReview == nil {
			continue
		}

		gameName := r.GameName
		if gameName == "" && r.ReviewID != nil {
			if name, err := o.store.GameNameForReview(ctx, *r.ReviewID); err == nil {
				gameName = name
			}
		}

		if err := o.store.UpdateMappedFields(ctx, r.ID, mapped.AnalysedReview, mapped.InputTokens, mapped.OutputTokens, mapped.TotalTokens, gameName); err != nil {
			return touched, fmt.Errorf("update mapped fields for result %d: %w", r.ID, err)
		}
		touched++
	}
	return touched, nil
}

// decodeRaw hands AnalysisOutput's stored string back to the mapper as
// text; ParseRaw's loose-parse path handles both JSON-object and
// plain-text forms.
func decodeRaw(s string) any {
	return s
}
