package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const getCursorSQL = `
SELECT cursor FROM scrape_cursors WHERE app_id = $1 AND params_hash = $2`

// GetCursor returns the saved pagination token for (appID, paramsHash), or
// ("", false) if none has been saved yet.
func (s *Store) GetCursor(ctx context.Context, appID int64, paramsHash string) (string, bool, error) {
	var cursor *string
	err := s.pool.QueryRow(ctx, getCursorSQL, appID, paramsHash).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cursor: %w", err)
	}
	if cursor == nil {
		return "", false, nil
	}
	return *cursor, true, nil
}

const upsertCursorSQL = `
INSERT INTO scrape_cursors (app_id, params_hash, cursor, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (app_id, params_hash) DO UPDATE SET cursor = EXCLUDED.cursor, updated_at = now()`

// SaveCursor records the pagination token reached after a page that saved at
// least one new review.
func (s *Store) SaveCursor(ctx context.Context, appID int64, paramsHash, cursor string) error {
	_, err := s.pool.Exec(ctx, upsertCursorSQL, appID, paramsHash, cursor)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
