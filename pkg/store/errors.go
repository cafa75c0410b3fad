package store

import "errors"

// ErrNotFound is returned when a lookup by id/key matches no row.
var ErrNotFound = errors.New("store: not found")
