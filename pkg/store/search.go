package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CatalogEntry is a minimal catalog row returned by SearchCatalog.
type CatalogEntry struct {
	AppID int64
	Name  string
}

var nonAlnumSpace = regexp.MustCompile(`[^a-z0-9\s]`)

func normalizeQuery(s string) string {
	return nonAlnumSpace.ReplaceAllString(strings.ToLower(s), "")
}

// SearchCatalog searches the games catalog by name, returning (rows,
// estimated_total). Numeric queries are treated as an exact app_id lookup;
// otherwise it tries a tsvector prefix match and falls back to a
// case-insensitive substring scan.
func (s *Store) SearchCatalog(ctx context.Context, query string, start, count int) ([]CatalogEntry, int, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, 0, nil
	}

	if appID, err := strconv.ParseInt(q, 10, 64); err == nil {
		rows, err := s.pool.Query(ctx, `SELECT app_id, name FROM games WHERE app_id = $1 LIMIT $2`, appID, count)
		if err != nil {
			return nil, 0, fmt.Errorf("search catalog by app_id: %w", err)
		}
		entries, err := scanCatalogEntries(rows)
		if err != nil {
			return nil, 0, err
		}
		if len(entries) > 0 {
			return entries, len(entries), nil
		}
	}

	norm := normalizeQuery(q)
	if norm == "" {
		norm = q
	}

	rows, err := s.pool.Query(ctx, `
		SELECT app_id, name FROM games
		WHERE name_tsv @@ to_tsquery('simple', $1 || ':*')
		LIMIT $2 OFFSET $3`, norm, count, start)
	if err != nil {
		return nil, 0, fmt.Errorf("search catalog fts: %w", err)
	}
	entries, err := scanCatalogEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	if len(entries) > 0 {
		var total int
		err := s.pool.QueryRow(ctx, `
			SELECT count(*) FROM games WHERE name_tsv @@ to_tsquery('simple', $1 || ':*')`, norm).Scan(&total)
		if err != nil {
			total = len(entries)
		}
		return entries, total, nil
	}

	like := "%" + norm + "%"
	rows, err = s.pool.Query(ctx, `
		SELECT app_id, name FROM games WHERE lower(name) LIKE $1 LIMIT $2 OFFSET $3`, like, count, start)
	if err != nil {
		return nil, 0, fmt.Errorf("search catalog like: %w", err)
	}
	entries, err = scanCatalogEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	if len(entries) == 0 {
		return nil, 0, nil
	}
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM games WHERE lower(name) LIKE $1`, like).Scan(&total); err != nil {
		total = len(entries)
	}
	return entries, total, nil
}

func scanCatalogEntries(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}) ([]CatalogEntry, error) {
	defer rows.Close()
	var out []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.AppID, &e.Name); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RebuildCatalogIndex drops and recreates the GIN index backing catalog
// search. cmd/seedcatalog calls it once after each bulk upsert; nothing
// detects index corruption, and a failed rebuild is not retried.
func (s *Store) RebuildCatalogIndex(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DROP INDEX IF EXISTS idx_games_name_tsv`); err != nil {
		return fmt.Errorf("drop catalog index: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `CREATE INDEX idx_games_name_tsv ON games USING gin (name_tsv)`); err != nil {
		return fmt.Errorf("recreate catalog index: %w", err)
	}
	return nil
}
