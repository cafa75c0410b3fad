package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comfydata276/reviewforge/pkg/models"
)

const createJobSQL = `
INSERT INTO analysis_jobs (name, status, settings_json, created_at)
VALUES ($1, 'pending', $2, now())
RETURNING id`

// CreateJob inserts a pending AnalysisJob and returns its id.
func (s *Store) CreateJob(ctx context.Context, name, settingsJSON string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, createJobSQL, name, settingsJSON).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

const startJobSQL = `
UPDATE analysis_jobs SET total_reviews = $2, status = 'running', started_at = now()
WHERE id = $1`

// StartJob records the materialized work-unit count and transitions the job
// to running.
func (s *Store) StartJob(ctx context.Context, jobID int64, totalReviews int) error {
	_, err := s.pool.Exec(ctx, startJobSQL, jobID, totalReviews)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	return nil
}

const setProcessedSQL = `
UPDATE analysis_jobs SET processed_count = LEAST($2, total_reviews)
WHERE id = $1 AND $2 > processed_count`

// SetProcessed sets processed_count to the given absolute value, capped at
// total_reviews, but only moves it forward (processed_count is monotonically
// non-decreasing per the concurrency model). Used both for provider-reported
// progress callbacks (progress_cb(completed, total)) and for the
// post-persistence fallback increment.
func (s *Store) SetProcessed(ctx context.Context, jobID int64, completed int) error {
	_, err := s.pool.Exec(ctx, setProcessedSQL, jobID, completed)
	if err != nil {
		return fmt.Errorf("set processed: %w", err)
	}
	return nil
}

const completeJobSQL = `
UPDATE analysis_jobs SET status = 'completed', completed_at = now() WHERE id = $1`

// CompleteJob marks a job terminal-complete.
func (s *Store) CompleteJob(ctx context.Context, jobID int64) error {
	_, err := s.pool.Exec(ctx, completeJobSQL, jobID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

const failJobSQL = `
UPDATE analysis_jobs SET status = 'error', error = $2, completed_at = now() WHERE id = $1`

// FailJob marks a job terminal-error with a message.
func (s *Store) FailJob(ctx context.Context, jobID int64, message string) error {
	_, err := s.pool.Exec(ctx, failJobSQL, jobID, message)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

const getJobSQL = `
SELECT id, name, status, total_reviews, processed_count, settings_json, error,
       created_at, started_at, completed_at
FROM analysis_jobs WHERE id = $1`

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, jobID int64) (models.AnalysisJob, error) {
	var j models.AnalysisJob
	err := s.pool.QueryRow(ctx, getJobSQL, jobID).Scan(
		&j.ID, &j.Name, &j.Status, &j.TotalReviews, &j.ProcessedCount, &j.SettingsJSON, &j.Error,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AnalysisJob{}, ErrNotFound
	}
	if err != nil {
		return models.AnalysisJob{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

const listJobsSQL = `
SELECT id, name, status, total_reviews, processed_count, settings_json, error,
       created_at, started_at, completed_at
FROM analysis_jobs ORDER BY created_at DESC`

// ListJobs returns every job, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]models.AnalysisJob, error) {
	rows, err := s.pool.Query(ctx, listJobsSQL)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.AnalysisJob
	for rows.Next() {
		var j models.AnalysisJob
		if err := rows.Scan(
			&j.ID, &j.Name, &j.Status, &j.TotalReviews, &j.ProcessedCount, &j.SettingsJSON, &j.Error,
			&j.CreatedAt, &j.StartedAt, &j.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
