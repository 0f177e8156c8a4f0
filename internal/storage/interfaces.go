package storage

import (
	"context"

	"token-market/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Insert adds a new token at mint time. Returns ErrDuplicateKey if
	// token_id or symbol exists.
	Insert(ctx context.Context, t *domain.Token) error

	// GetByID retrieves a token by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tokenID string) (*domain.Token, error)

	// GetBySymbol retrieves a token by symbol. Returns ErrNotFound if not exists.
	GetBySymbol(ctx context.Context, symbol string) (*domain.Token, error)

	// List retrieves all tokens ordered by symbol.
	List(ctx context.Context) ([]*domain.Token, error)
}

// HolderStore provides access to holders storage. Balance mutation goes
// through Ledger; Upsert exists for registration and test seeding.
type HolderStore interface {
	// Upsert inserts or replaces a holder position.
	Upsert(ctx context.Context, h *domain.Holder) error

	// Get retrieves one holder position. Returns ErrNotFound if not exists.
	Get(ctx context.Context, holderID, tokenID string) (*domain.Holder, error)

	// GetByToken retrieves all holder positions for a token, ordered by
	// holder_id ASC.
	GetByToken(ctx context.Context, tokenID string) ([]*domain.Holder, error)
}

// OrderStore provides read access to orders. Orders are created and
// mutated only through Ledger.
type OrderStore interface {
	// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetOpenByToken retrieves all open and partially filled orders for a
	// token, ordered by created_at ASC, order_id ASC.
	GetOpenByToken(ctx context.Context, tokenID string) ([]*domain.Order, error)
}

// TradeStore provides read access to the trade tape. Trades are
// inserted only by Ledger.ApplyTrade.
type TradeStore interface {
	// GetByToken retrieves the most recent trades for a token, ordered by
	// executed_at DESC, up to limit.
	GetByToken(ctx context.Context, tokenID string, limit int) ([]*domain.Trade, error)
}

// DistributionStore provides read access to distributions and claims.
// Writes go through Ledger.RecordDistribution and Ledger.MarkClaimPaid.
type DistributionStore interface {
	// GetByID retrieves a distribution. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, distributionID string) (*domain.DividendDistribution, error)

	// GetClaims retrieves all claims of a distribution, ordered by holder_id ASC.
	GetClaims(ctx context.Context, distributionID string) ([]*domain.DividendClaim, error)

	// GetPendingClaims retrieves up to limit pending claims across all
	// distributions, oldest distribution first. Used by the payout worker.
	GetPendingClaims(ctx context.Context, limit int) ([]*domain.DividendClaim, error)
}

// TickStore provides access to the trade-tick timeseries. Ticks are a
// projection of committed trades for market-data queries; the trades
// table in the relational store remains the source of truth.
type TickStore interface {
	// InsertTicks appends trade ticks. Duplicate (token_id, trade_id)
	// pairs are tolerated; readers deduplicate by engine semantics.
	InsertTicks(ctx context.Context, ticks []*domain.TradeTick) error

	// GetRecent retrieves the most recent ticks for a token, ordered by
	// executed_at DESC, up to limit.
	GetRecent(ctx context.Context, tokenID string, limit int) ([]*domain.TradeTick, error)

	// Stats aggregates trade count, volume and high/low/last price for a
	// token over ticks with executed_at >= sinceMs.
	Stats(ctx context.Context, tokenID string, sinceMs int64) (*domain.MarketStats, error)
}

// Ledger provides the transactional multi-row operations. Every method
// that mutates runs in one storage transaction with row locks scoped to
// the affected token, holder and order rows; partial application is
// never an observable state.
type Ledger interface {
	// CreateOrder validates funding and inserts the order with status
	// open. Sell orders stake quantity units of the holder's available
	// balance; buy orders move quantity*limit_price sats from the
	// holder's spendable sats into escrow. Returns ErrInvalidInput,
	// ErrNotFound, or an insufficient-funds error from the market package.
	CreateOrder(ctx context.Context, o *domain.Order) error

	// CancelOrder marks a non-terminal order cancelled and releases its
	// remaining stake or escrow. Returns ErrNotFound for unknown orders
	// and ErrConflict for orders already terminal.
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ApplyTrade atomically moves units seller->buyer and sats
	// buyer-escrow->seller, updates both orders' filled quantity and
	// status, and appends the trade row. Escrow locked above the
	// execution price is refunded to the buyer.
	ApplyTrade(ctx context.Context, t *domain.Trade) error

	// PurchaseFromTreasury sells quantity units from the token treasury
	// to a pre-funded holder at costSats total. expectedRemaining is the
	// treasury balance the quote was computed against; if the treasury
	// moved since, ErrConflict is returned and the caller must requote.
	PurchaseFromTreasury(ctx context.Context, tokenID, holderID string, quantity, expectedRemaining, costSats int64) error

	// SnapshotBalances returns a consistent point-in-time read of all
	// holder positions with balance > 0 for a token, ordered by
	// holder_id ASC. Treasury units are excluded by construction; the
	// treasury is not a holder row.
	SnapshotBalances(ctx context.Context, tokenID string) ([]*domain.Holder, error)

	// RecordDistribution inserts one distribution and its claims in a
	// single transaction, all-or-nothing. Returns ErrDuplicateKey if the
	// distribution_id already exists (replayed idempotency key).
	RecordDistribution(ctx context.Context, d *domain.DividendDistribution, claims []*domain.DividendClaim) error

	// MarkClaimPaid flips one pending claim to claimed with the payment
	// transaction ID. Returns ErrConflict if the claim is already claimed.
	MarkClaimPaid(ctx context.Context, claimID, paymentTxID string, claimedAt int64) error

	// WithTokenLock runs fn while holding the per-token matching lock.
	// Two concurrent matching runs for one token serialize here so they
	// cannot both consume the same resting order.
	WithTokenLock(ctx context.Context, tokenID string, fn func(ctx context.Context) error) error
}
