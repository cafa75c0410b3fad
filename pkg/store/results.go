package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comfydata276/reviewforge/pkg/models"
)

const insertResultSQL = `
INSERT INTO analysis_results (
    job_id, review_id, game_name, review_text, prompt, model, provider,
    reasoning_effort, status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now())
RETURNING id`

// CreateResults materializes one pending AnalysisResult per review,
// snapshotting the fields that must survive the review's own lifetime.
func (s *Store) CreateResults(ctx context.Context, jobID int64, reviews []models.Review, gameNames map[int64]string, prompt, model, provider string, effort models.ReasoningEffort) ([]models.AnalysisResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]models.AnalysisResult, 0, len(reviews))
	for _, r := range reviews {
		reviewID := r.ReviewID
		var id int64
		err := tx.QueryRow(ctx, insertResultSQL,
			jobID, reviewID, gameNames[r.AppID], r.ReviewText, prompt, model, provider, string(effort),
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("create result for review %s: %w", reviewID, err)
		}
		out = append(out, models.AnalysisResult{
			ID:              id,
			JobID:           jobID,
			ReviewID:        &reviewID,
			GameName:        gameNames[r.AppID],
			ReviewText:      r.ReviewText,
			Prompt:          prompt,
			Model:           model,
			Provider:        provider,
			ReasoningEffort: effort,
			Status:          models.ResultPending,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit results: %w", err)
	}
	return out, nil
}

const completeResultSQL = `
UPDATE analysis_results SET
    analysis_output = $2, analysed_review = $3, input_tokens = $4, output_tokens = $5,
    total_tokens = $6, status = $7, error = $8, completed_at = now()
WHERE id = $1`

// CompleteResult writes a provider response's mapped fields. Mapping
// failure still sets status=complete with raw output retained and canonical
// fields left null: "the provider answered, we couldn't parse it" is kept
// distinct from "the provider failed".
func (s *Store) CompleteResult(ctx context.Context, resultID int64, rawOutput, analysedReview *string, inputTokens, outputTokens, totalTokens *int, status models.ResultStatus, errMsg *string) error {
	_, err := s.pool.Exec(ctx, completeResultSQL, resultID, rawOutput, analysedReview, inputTokens, outputTokens, totalTokens, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("complete result: %w", err)
	}
	return nil
}

const listResultsByJobSQL = `
SELECT id, job_id, review_id, game_name, review_text, prompt, model, provider,
       reasoning_effort, analysis_output, analysed_review, input_tokens,
       output_tokens, total_tokens, status, error, created_at, completed_at
FROM analysis_results WHERE job_id = $1 ORDER BY created_at ASC, id ASC`

// ListResultsByJob returns results for a job in insertion order.
func (s *Store) ListResultsByJob(ctx context.Context, jobID int64) ([]models.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx, listResultsByJobSQL, jobID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

const listUnmappedSQL = `
SELECT id, job_id, review_id, game_name, review_text, prompt, model, provider,
       reasoning_effort, analysis_output, analysed_review, input_tokens,
       output_tokens, total_tokens, status, error, created_at, completed_at
FROM analysis_results
WHERE analysis_output IS NOT NULL AND analysed_review IS NULL
ORDER BY id ASC LIMIT $1`

// ListUnmapped returns results whose raw output is present but mapped
// content is absent, for the backfill operation. Bounded by limit.
func (s *Store) ListUnmapped(ctx context.Context, limit int) ([]models.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx, listUnmappedSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list unmapped results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

const updateMappedFieldsSQL = `
UPDATE analysis_results SET analysed_review = $2, input_tokens = $3, output_tokens = $4,
    total_tokens = $5, game_name = COALESCE(NULLIF(game_name, ''), $6)
WHERE id = $1`

// UpdateMappedFields writes backfilled canonical fields without touching
// status or completed_at (the result is already terminal).
func (s *Store) UpdateMappedFields(ctx context.Context, resultID int64, analysedReview *string, inputTokens, outputTokens, totalTokens *int, gameName string) error {
	_, err := s.pool.Exec(ctx, updateMappedFieldsSQL, resultID, analysedReview, inputTokens, outputTokens, totalTokens, gameName)
	if err != nil {
		return fmt.Errorf("update mapped fields: %w", err)
	}
	return nil
}

// GameNameForReview resolves the title name for a review, used by backfill
// to repair AnalysisResult.game_name via review_id -> app_id -> games.name.
func (s *Store) GameNameForReview(ctx context.Context, reviewID string) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `
		SELECT g.name FROM reviews r JOIN games g ON g.app_id = r.app_id WHERE r.review_id = $1`,
		reviewID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("game name for review: %w", err)
	}
	return name, nil
}

func scanResults(rows pgx.Rows) ([]models.AnalysisResult, error) {
	var out []models.AnalysisResult
	for rows.Next() {
		var r models.AnalysisResult
		var effort string
		if err := rows.Scan(
			&r.ID, &r.JobID, &r.ReviewID, &r.GameName, &r.ReviewText, &r.Prompt, &r.Model, &r.Provider,
			&effort, &r.AnalysisOutput, &r.AnalysedReview, &r.InputTokens, &r.OutputTokens, &r.TotalTokens,
			&r.Status, &r.Error, &r.CreatedAt, &r.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.ReasoningEffort = models.ReasoningEffort(effort)
		out = append(out, r)
	}
	return out, rows.Err()
}
