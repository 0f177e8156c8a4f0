package domain

// ClaimStatus is the lifecycle state of a dividend claim.
type ClaimStatus string

const (
	ClaimPending ClaimStatus = "pending"
	ClaimClaimed ClaimStatus = "claimed"
)

// DividendDistribution records one pro-rata revenue distribution
// ("irrigation") across a token's holders. Immutable once created.
type DividendDistribution struct {
	DistributionID            string // deterministic hash of (token, source, idempotency key)
	TokenID                   string
	TotalAmountSats           int64  // revenue being distributed
	PerUnitSats               int64  // floor(TotalAmountSats / circulating supply)
	CirculatingSupplySnapshot int64  // circulating supply at snapshot time
	DustSats                  int64  // remainder retained by treasury, < circulating supply
	Source                    string // revenue source, e.g. "content_sale"
	Currency                  string // settlement currency, normally "BSV"
	DistributedAt             int64  // Unix timestamp in milliseconds
}

// DividendClaim is one holder's share of a distribution. Claims start
// pending; the payout process marks them claimed once payment is sent.
type DividendClaim struct {
	ClaimID         string
	DistributionID  string
	HolderID        string
	Handle          string // payment handle at snapshot time
	BalanceSnapshot int64  // holder units at snapshot time
	ClaimAmountSats int64  // BalanceSnapshot * PerUnitSats
	Status          ClaimStatus
	PaymentTxID     string // payment rail transaction, set when claimed
	ClaimedAt       int64  // Unix timestamp in milliseconds, 0 while pending
}
