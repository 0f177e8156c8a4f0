package stub

import (
	"context"
	"errors"

	"token-market/internal/chain"
)

// ErrUnavailable simulates an oracle outage.
var ErrUnavailable = errors.New("chain oracle unavailable")

// Oracle implements chain.Oracle for testing.
type Oracle struct {
	Balances map[string]int64

	// Fail makes every call return ErrUnavailable.
	Fail bool

	// TreasuryCalls and HolderCalls count invocations.
	TreasuryCalls int
	HolderCalls   int
}

// NewOracle creates a new stub oracle.
func NewOracle() *Oracle {
	return &Oracle{Balances: make(map[string]int64)}
}

// Compile-time interface check.
var _ chain.Oracle = (*Oracle)(nil)

// GetTreasuryBalance returns the stubbed balance for an address.
func (o *Oracle) GetTreasuryBalance(_ context.Context, address string) (int64, error) {
	o.TreasuryCalls++
	if o.Fail {
		return 0, ErrUnavailable
	}
	return o.Balances[address], nil
}

// GetHolderBalances returns stubbed balances per address.
func (o *Oracle) GetHolderBalances(_ context.Context, addresses []string) (map[string]int64, error) {
	o.HolderCalls++
	if o.Fail {
		return nil, ErrUnavailable
	}
	result := make(map[string]int64, len(addresses))
	for _, addr := range addresses {
		result[addr] = o.Balances[addr]
	}
	return result, nil
}
