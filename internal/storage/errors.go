package storage

import "errors"

// Storage errors for the ledger stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Trades, distributions and claims
	// are append-only; nothing is ever updated in place.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a row changed under a caller's
	// assumption (stale treasury read, contended order row). The caller
	// should requote and retry.
	ErrConflict = errors.New("conflicting concurrent update")
)
