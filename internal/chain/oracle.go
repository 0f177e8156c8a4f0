// Package chain provides read-only access to the on-chain ledger:
// balance queries over JSON-RPC and a websocket watcher for treasury
// address activity. Nothing in this package mutates chain state.
package chain

import (
	"context"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Oracle answers balance queries against the chain. Implementations
// must bound every call with their own timeout and return an explicit
// error rather than hang.
type Oracle interface {
	// GetTreasuryBalance returns the token units held by the treasury
	// address.
	GetTreasuryBalance(ctx context.Context, address string) (int64, error)

	// GetHolderBalances returns token units per address. Addresses
	// unknown to the chain map to 0.
	GetHolderBalances(ctx context.Context, addresses []string) (map[string]int64, error)
}

// ValidAddress reports whether address decodes to a 32-byte ed25519
// point on the curve.
func ValidAddress(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil {
		return false
	}
	return isOnCurve(decoded)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
