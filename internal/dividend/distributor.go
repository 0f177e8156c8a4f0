// Package dividend converts a revenue event into pro-rata holder
// claims ("irrigation"). The distributor only records obligations;
// moving sats is the payout process's job, so a payment-rail outage
// never corrupts the claim math.
package dividend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"token-market/internal/domain"
	"token-market/internal/idhash"
	"token-market/internal/market"
	"token-market/internal/storage"
)

// DefaultCurrency is used when a revenue event does not name one.
const DefaultCurrency = "BSV"

// Distributor snapshots holder balances and writes one distribution
// plus its claims in a single ledger transaction.
type Distributor struct {
	tokens storage.TokenStore
	ledger storage.Ledger
	logger *log.Logger
	now    func() int64
}

// Options configures a Distributor. Tokens and Ledger are required.
type Options struct {
	Tokens storage.TokenStore
	Ledger storage.Ledger
	Logger *log.Logger
	Now    func() int64
}

// NewDistributor creates a distributor.
func NewDistributor(opts Options) *Distributor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Distributor{
		tokens: opts.Tokens,
		ledger: opts.Ledger,
		logger: logger,
		now:    now,
	}
}

// Result summarizes one recorded distribution.
type Result struct {
	DistributionID   string `json:"distribution_id"`
	HoldersProcessed int    `json:"holders_processed"`
	TotalDistributed int64  `json:"total_distributed"`
	DustSats         int64  `json:"dust_sats"`
}

// Irrigate distributes totalAmountSats across a token's holders
// pro-rata by balance. Per-unit amount is floor(total / circulating)
// so the sum of claims never exceeds the revenue; the remainder is
// dust, retained by the treasury and recorded on the distribution.
//
// The distribution ID is a deterministic hash of (tokenID, source,
// idempotencyKey); replaying the same revenue event returns
// market.ErrDuplicateDistribution instead of paying holders twice.
func (d *Distributor) Irrigate(ctx context.Context, tokenID string, totalAmountSats int64, source, currency, idempotencyKey string) (*Result, error) {
	if tokenID == "" {
		return nil, market.Validationf("token_id is required")
	}
	if totalAmountSats <= 0 {
		return nil, market.Validationf("total_amount_sats must be positive, got %d", totalAmountSats)
	}
	if source == "" {
		return nil, market.Validationf("source is required")
	}
	if idempotencyKey == "" {
		return nil, market.Validationf("idempotency_key is required")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	if _, err := d.tokens.GetByID(ctx, tokenID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: token %s", market.ErrNotFound, tokenID)
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	holders, err := d.ledger.SnapshotBalances(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("snapshot balances: %w", err)
	}

	var circulating int64
	for _, h := range holders {
		circulating += h.Balance
	}
	if circulating == 0 {
		return nil, market.Validationf("token %s has no circulating supply", tokenID)
	}

	perUnit := totalAmountSats / circulating
	distributionID := idhash.ComputeDistributionID(tokenID, source, idempotencyKey)
	now := d.now()

	claims := make([]*domain.DividendClaim, 0, len(holders))
	var distributed int64
	for _, h := range holders {
		amount := h.Balance * perUnit
		if amount == 0 {
			continue
		}
		claims = append(claims, &domain.DividendClaim{
			ClaimID:         idhash.ComputeClaimID(distributionID, h.HolderID),
			DistributionID:  distributionID,
			HolderID:        h.HolderID,
			Handle:          h.Handle,
			BalanceSnapshot: h.Balance,
			ClaimAmountSats: amount,
			Status:          domain.ClaimPending,
		})
		distributed += amount
	}

	dist := &domain.DividendDistribution{
		DistributionID:            distributionID,
		TokenID:                   tokenID,
		TotalAmountSats:           totalAmountSats,
		PerUnitSats:               perUnit,
		CirculatingSupplySnapshot: circulating,
		DustSats:                  totalAmountSats - distributed,
		Source:                    source,
		Currency:                  currency,
		DistributedAt:             now,
	}

	if err := d.ledger.RecordDistribution(ctx, dist, claims); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", market.ErrDuplicateDistribution, distributionID)
		}
		return nil, fmt.Errorf("record distribution: %w", err)
	}

	d.logger.Printf("[irrigate] %s distributed %d sats to %d holders (per unit %d, dust %d)",
		tokenID, distributed, len(claims), perUnit, dist.DustSats)

	return &Result{
		DistributionID:   distributionID,
		HoldersProcessed: len(claims),
		TotalDistributed: distributed,
		DustSats:         dist.DustSats,
	}, nil
}
