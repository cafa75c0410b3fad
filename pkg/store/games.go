package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comfydata276/reviewforge/pkg/models"
)

const upsertGameSQL = `
INSERT INTO games (app_id, name, added_at)
VALUES ($1, $2, now())
ON CONFLICT (app_id) DO UPDATE SET name = EXCLUDED.name
RETURNING app_id, name, added_at, last_scraped_at, last_scraped_cursor`

// UpsertGame inserts a title or, if it already exists, refreshes its name.
func (s *Store) UpsertGame(ctx context.Context, appID int64, name string) (models.Game, error) {
	return scanGame(s.pool.QueryRow(ctx, upsertGameSQL, appID, name))
}

const getGameSQL = `
SELECT app_id, name, added_at, last_scraped_at, last_scraped_cursor
FROM games WHERE app_id = $1`

// GetGame fetches a title by id. Returns ErrNotFound if absent.
func (s *Store) GetGame(ctx context.Context, appID int64) (models.Game, error) {
	return scanGame(s.pool.QueryRow(ctx, getGameSQL, appID))
}

const listGamesSQL = `
SELECT app_id, name, added_at, last_scraped_at, last_scraped_cursor
FROM games ORDER BY name`

// ListGames returns every tracked title.
func (s *Store) ListGames(ctx context.Context) ([]models.Game, error) {
	rows, err := s.pool.Query(ctx, listGamesSQL)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGameRow(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

const deleteGameSQL = `DELETE FROM games WHERE app_id = $1`

// DeleteGame removes a title and, via ON DELETE CASCADE, its reviews.
func (s *Store) DeleteGame(ctx context.Context, appID int64) error {
	tag, err := s.pool.Exec(ctx, deleteGameSQL, appID)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const touchGameScrapedSQL = `
UPDATE games SET last_scraped_at = $2, last_scraped_cursor = $3 WHERE app_id = $1`

// TouchGameScraped records the most recent scrape timestamp and cursor for
// display purposes. The authoritative resumable cursor lives in
// scrape_cursors, keyed by params_hash; this column is cosmetic.
func (s *Store) TouchGameScraped(ctx context.Context, appID int64, at time.Time, cursor string) error {
	_, err := s.pool.Exec(ctx, touchGameScrapedSQL, appID, at, cursor)
	if err != nil {
		return fmt.Errorf("touch game scraped: %w", err)
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func scanGame(r row) (models.Game, error) {
	var g models.Game
	err := r.Scan(&g.AppID, &g.Name, &g.AddedAt, &g.LastScrapedAt, &g.LastScrapedCursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Game{}, ErrNotFound
	}
	if err != nil {
		return models.Game{}, fmt.Errorf("scan game: %w", err)
	}
	return g, nil
}

func scanGameRow(rows pgx.Rows) (models.Game, error) {
	var g models.Game
	if err := rows.Scan(&g.AppID, &g.Name, &g.AddedAt, &g.LastScrapedAt, &g.LastScrapedCursor); err != nil {
		return models.Game{}, fmt.Errorf("scan game: %w", err)
	}
	return g, nil
}
