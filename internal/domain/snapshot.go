package domain

// OnChainSnapshot is the chain oracle's view of a token's balances at
// reconciliation time. Ephemeral, never persisted.
type OnChainSnapshot struct {
	TokenID         string
	TreasuryBalance int64            // units at the treasury address
	HolderBalances  map[string]int64 // chain address -> units
	FetchedAt       int64            // Unix timestamp in milliseconds
}

// BalanceDiscrepancy is one divergence between the database ledger and
// the chain oracle. On-chain is the source of truth; discrepancies are
// reported, never auto-repaired.
type BalanceDiscrepancy struct {
	HolderID     string // empty for the treasury entry
	ChainAddress string
	DBBalance    int64
	ChainBalance int64
	Delta        int64 // ChainBalance - DBBalance
}

// ReconciliationReport is the outcome of one reconcile run.
type ReconciliationReport struct {
	TokenID          string
	InSync           bool
	DBCirculating    int64
	ChainCirculating int64
	DBTreasury       int64
	ChainTreasury    int64
	Discrepancies    []BalanceDiscrepancy
	ReconciledAt     int64 // Unix timestamp in milliseconds
}
