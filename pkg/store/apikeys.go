package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comfydata276/reviewforge/pkg/models"
)

const insertAPIKeySQL = `
INSERT INTO api_keys (provider, ciphertext, nonce, masked_key, name, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
RETURNING id`

// SaveAPIKey stores an encrypted credential. Plaintext never reaches this
// layer; the caller supplies only the ciphertext/nonce produced by pkg/vault
// and the masked form.
func (s *Store) SaveAPIKey(ctx context.Context, k models.ApiKey) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, insertAPIKeySQL, k.Provider, k.Ciphertext, k.Nonce, k.MaskedKey, k.Name, k.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save api key: %w", err)
	}
	return id, nil
}

const getAPIKeyByProviderSQL = `
SELECT id, provider, ciphertext, nonce, masked_key, name, notes, created_at, updated_at
FROM api_keys WHERE provider = $1 ORDER BY updated_at DESC LIMIT 1`

// GetAPIKeyByProvider returns the most recently updated credential for a
// provider.
func (s *Store) GetAPIKeyByProvider(ctx context.Context, provider string) (models.ApiKey, error) {
	var k models.ApiKey
	err := s.pool.QueryRow(ctx, getAPIKeyByProviderSQL, provider).Scan(
		&k.ID, &k.Provider, &k.Ciphertext, &k.Nonce, &k.MaskedKey, &k.Name, &k.Notes, &k.CreatedAt, &k.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ApiKey{}, ErrNotFound
	}
	if err != nil {
		return models.ApiKey{}, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

const listAPIKeysSQL = `
SELECT id, provider, ciphertext, nonce, masked_key, name, notes, created_at, updated_at
FROM api_keys ORDER BY provider`

// ListAPIKeys returns every stored credential ordered by provider, with
// Ciphertext and Nonce alongside the masked form (callers should never read
// Ciphertext/Nonce outside pkg/vault).
func (s *Store) ListAPIKeys(ctx context.Context) ([]models.ApiKey, error) {
	rows, err := s.pool.Query(ctx, listAPIKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []models.ApiKey
	for rows.Next() {
		var k models.ApiKey
		if err := rows.Scan(
			&k.ID, &k.Provider, &k.Ciphertext, &k.Nonce, &k.MaskedKey, &k.Name, &k.Notes, &k.CreatedAt, &k.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
