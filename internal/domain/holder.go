package domain

// Holder represents a token holder's ledger position for one token.
// Corresponds to the holders table, keyed (holder_id, token_id).
type Holder struct {
	HolderID       string // PRIMARY KEY part
	TokenID        string // PRIMARY KEY part
	Handle         string // payment/identity handle, e.g. "$alice"
	ChainAddress   string // on-chain address for reconciliation
	Balance        int64  // units owned
	StakedBalance  int64  // units locked for resting sell orders, <= Balance
	EscrowSats     int64  // sats locked for resting buy orders
	ProceedsSats   int64  // sats credited from filled sell orders
	TotalPurchased int64  // lifetime units bought
	TotalSpentSats int64  // lifetime sats spent on purchases
	UpdatedAt      int64  // Unix timestamp in milliseconds
}

// AvailableBalance is the portion of Balance not locked under resting
// sell orders. Always >= 0.
func (h *Holder) AvailableBalance() int64 {
	return h.Balance - h.StakedBalance
}
