package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comfydata276/reviewforge/pkg/models"
)

const insertReviewSQL = `
INSERT INTO reviews (
    review_id, app_id, review_text, review_date, playtime_hours, review_type,
    language, early_access, received_for_free, votes_helpful, weighted_vote,
    comment_count, steam_purchase, num_games_owned, num_reviews,
    playtime_last_two, last_played, timestamp_updated, scraped_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now()
)
ON CONFLICT (review_id) DO NOTHING`

// InsertReviews persists a batch of reviews in a single transaction.
// Duplicate review_ids are silently skipped (idempotent insert). On a
// constraint violation the transaction is rolled back and the count saved
// before the failing row is returned.
func (s *Store) InsertReviews(ctx context.Context, reviews []models.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved := 0
	for _, r := range reviews {
		tag, err := tx.Exec(ctx, insertReviewSQL,
			r.ReviewID, r.AppID, r.ReviewText, r.ReviewDate, r.PlaytimeHours, string(r.ReviewType),
			r.Language, r.EarlyAccess, r.ReceivedForFree, r.VotesHelpful, r.WeightedVote,
			r.CommentCount, r.SteamPurchase, r.NumGamesOwned, r.NumReviews,
			r.PlaytimeLastTwo, r.LastPlayed, r.TimestampUpdated,
		)
		if err != nil {
			return saved, fmt.Errorf("insert review %s: %w", r.ReviewID, err)
		}
		if tag.RowsAffected() > 0 {
			saved++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit review batch: %w", err)
	}
	return saved, nil
}

// filterWhere builds a WHERE clause and positional args for a ReviewFilter.
// Shared by CountMatching, MaxReviewDate, and the orchestrator's review
// selection, so the predicate grammar stays in exactly one place.
func filterWhere(f models.ReviewFilter, startArg int) (string, []any) {
	var clauses []string
	var args []any
	arg := startArg

	next := func(v any) string {
		args = append(args, v)
		arg++
		return fmt.Sprintf("$%d", arg-1)
	}

	if f.AppID != nil {
		clauses = append(clauses, "app_id = "+next(*f.AppID))
	}
	if f.Language != "" {
		clauses = append(clauses, "language = "+next(strings.ToLower(f.Language)))
	}
	if f.StartDate != nil {
		clauses = append(clauses, "review_date >= "+next(*f.StartDate))
	}
	if f.EndDate != nil {
		clauses = append(clauses, "review_date <= "+next(*f.EndDate))
	}
	switch f.EarlyAccess {
	case models.EarlyAccessExclude:
		clauses = append(clauses, "early_access = false")
	case models.EarlyAccessOnly:
		clauses = append(clauses, "early_access = true")
	}
	switch f.ReceivedForFree {
	case models.FreeCopyExclude:
		clauses = append(clauses, "received_for_free = false")
	case models.FreeCopyOnly:
		clauses = append(clauses, "received_for_free = true")
	}
	if f.ReviewType != "" {
		clauses = append(clauses, "review_type = "+next(string(f.ReviewType)))
	}
	if f.MinPlaytimeHours != nil {
		clauses = append(clauses, "playtime_hours >= "+next(*f.MinPlaytimeHours))
	}
	if f.MaxPlaytimeHours != nil {
		clauses = append(clauses, "playtime_hours <= "+next(*f.MaxPlaytimeHours))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CountMatching returns the number of stored reviews matching f, used to
// compute remaining_needed against a title's cap.
func (s *Store) CountMatching(ctx context.Context, f models.ReviewFilter) (int, error) {
	where, args := filterWhere(f, 1)
	var n int
	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM reviews"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matching reviews: %w", err)
	}
	return n, nil
}

// MaxReviewDate returns the latest stored review_date for the title under
// the given filters, or nil if none stored. Used to compute threshold_start.
func (s *Store) MaxReviewDate(ctx context.Context, appID int64, f models.ReviewFilter) (*time.Time, error) {
	f.AppID = &appID
	where, args := filterWhere(f, 1)
	var t *time.Time
	err := s.pool.QueryRow(ctx, "SELECT max(review_date) FROM reviews"+where, args...).Scan(&t)
	if err != nil {
		return nil, fmt.Errorf("max review date: %w", err)
	}
	return t, nil
}

// ListMatching returns reviews satisfying f, ordered by review_id, for the
// orchestrator's work-unit materialization step.
func (s *Store) ListMatching(ctx context.Context, f models.ReviewFilter) ([]models.Review, error) {
	where, args := filterWhere(f, 1)
	query := `SELECT review_id, app_id, review_text, review_date, playtime_hours, review_type,
		language, early_access, received_for_free, votes_helpful, weighted_vote,
		comment_count, steam_purchase, num_games_owned, num_reviews,
		playtime_last_two, last_played, timestamp_updated, scraped_at
		FROM reviews` + where + ` ORDER BY review_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matching reviews: %w", err)
	}
	defer rows.Close()

	var out []models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReview(rows pgx.Rows) (models.Review, error) {
	var r models.Review
	var reviewType string
	err := rows.Scan(
		&r.ReviewID, &r.AppID, &r.ReviewText, &r.ReviewDate, &r.PlaytimeHours, &reviewType,
		&r.Language, &r.EarlyAccess, &r.ReceivedForFree, &r.VotesHelpful, &r.WeightedVote,
		&r.CommentCount, &r.SteamPurchase, &r.NumGamesOwned, &r.NumReviews,
		&r.PlaytimeLastTwo, &r.LastPlayed, &r.TimestampUpdated, &r.ScrapedAt,
	)
	if err != nil {
		return models.Review{}, fmt.Errorf("scan review: %w", err)
	}
	r.ReviewType = models.ReviewType(reviewType)
	return r, nil
}
