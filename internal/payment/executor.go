// Package payment defines the payment rail used to settle dividend
// claims.
package payment

import "context"

// Executor sends sats to a holder's payment handle. Implementations
// must treat the call as a bounded external operation and return an
// error rather than block.
type Executor interface {
	// Pay sends amountSats to destinationHandle and returns the rail's
	// transaction ID. The memo travels with the payment for audit.
	Pay(ctx context.Context, destinationHandle string, amountSats int64, memo string) (string, error)
}
