package models

import "time"

// Setting is a generic key/value row used for the active-prompt pointer and
// UI settings snapshots. Value is an opaque string (JSON for structured
// settings, plain text for the active prompt name).
type Setting struct {
	Key   string
	Value string
}

// ApiKey is an encrypted provider credential. Plaintext never leaves the
// vault; Ciphertext and Nonce are opaque to every caller but pkg/vault.
type ApiKey struct {
	ID         int64
	Provider   string
	Ciphertext []byte
	Nonce      []byte
	MaskedKey  string // last 6 plaintext chars, padded, display only
	Name       string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
