package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"token-market/internal/payment"
)

// ErrUnavailable simulates a payment rail outage.
var ErrUnavailable = errors.New("payment rail unavailable")

// Payment records one stubbed payment.
type Payment struct {
	Destination string
	AmountSats  int64
	Memo        string
	TxID        string
}

// Executor implements payment.Executor for testing.
type Executor struct {
	mu       sync.Mutex
	payments []Payment
	nextID   int

	// Fail makes every call return ErrUnavailable.
	Fail bool

	// FailFor makes calls to these destinations fail while others
	// succeed.
	FailFor map[string]bool
}

// NewExecutor creates a new stub executor.
func NewExecutor() *Executor {
	return &Executor{FailFor: make(map[string]bool)}
}

// Compile-time interface check.
var _ payment.Executor = (*Executor)(nil)

// Pay records the payment and returns a synthetic transaction ID.
func (e *Executor) Pay(_ context.Context, destinationHandle string, amountSats int64, memo string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Fail || e.FailFor[destinationHandle] {
		return "", ErrUnavailable
	}

	e.nextID++
	txID := fmt.Sprintf("tx-%04d", e.nextID)
	e.payments = append(e.payments, Payment{
		Destination: destinationHandle,
		AmountSats:  amountSats,
		Memo:        memo,
		TxID:        txID,
	})
	return txID, nil
}

// Payments returns a copy of all recorded payments.
func (e *Executor) Payments() []Payment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Payment, len(e.payments))
	copy(out, e.payments)
	return out
}
