// Package market defines the error taxonomy shared by the engine
// packages and the HTTP layer.
package market

import (
	"errors"
	"fmt"
)

// Sentinel errors. Handlers map these to machine-readable codes;
// callers dispatch with errors.Is.
var (
	// ErrValidation marks bad or missing input. Fails fast, before any
	// mutation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown token, order, or holder.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance marks a sell exceeding available balance or
	// a buy exceeding escrowed funds.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConcurrencyConflict marks lock contention on an order or holder
	// row. The caller should retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrDuplicateDistribution marks a replayed irrigation idempotency
	// key. The original distribution stands; nothing was paid twice.
	ErrDuplicateDistribution = errors.New("distribution already recorded")

	// ErrExternalService marks a ChainOracle or PaymentExecutor failure.
	// Always wraps the upstream error; never swallowed.
	ErrExternalService = errors.New("external service failure")
)

// InsufficientBalanceError carries the numeric context a caller needs
// to retry intelligently.
type InsufficientBalanceError struct {
	HolderID  string
	TokenID   string
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: holder %s token %s requested %d, available %d",
		e.HolderID, e.TokenID, e.Requested, e.Available)
}

// Unwrap ties the typed error into the sentinel taxonomy.
func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// External wraps an upstream service error with the service name.
func External(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternalService, service, err)
}
