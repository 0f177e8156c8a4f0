// Package payout settles pending dividend claims over the payment
// rail. It is the only component that moves sats off the ledger; the
// distributor records obligations, this runner pays them.
package payout

import (
	"context"
	"fmt"
	"log"
	"time"

	"token-market/internal/domain"
	"token-market/internal/observability"
	"token-market/internal/payment"
	"token-market/internal/storage"
)

// DefaultBatchSize bounds how many claims one run pays.
const DefaultBatchSize = 100

// Runner pays pending claims oldest-distribution-first and marks them
// claimed in the ledger. Runs must not overlap: the pay-then-mark
// sequence is not atomic, and a second runner racing the first could
// pay a claim twice.
type Runner struct {
	distributions storage.DistributionStore
	ledger        storage.Ledger
	executor      payment.Executor
	batchSize     int
	logger        *log.Logger
	now           func() int64
}

// Options configures a Runner. Distributions, Ledger and Executor are
// required.
type Options struct {
	Distributions storage.DistributionStore
	Ledger        storage.Ledger
	Executor      payment.Executor
	BatchSize     int
	Logger        *log.Logger
	Now           func() int64
}

// NewRunner creates a payout runner.
func NewRunner(opts Options) *Runner {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Runner{
		distributions: opts.Distributions,
		ledger:        opts.Ledger,
		executor:      opts.Executor,
		batchSize:     batchSize,
		logger:        logger,
		now:           now,
	}
}

// Result summarizes one payout run. A failed claim is reported and
// left pending for the next run; it never aborts the batch.
type Result struct {
	ClaimsPaid int      `json:"claims_paid"`
	SatsPaid   int64    `json:"sats_paid"`
	Errors     []string `json:"errors,omitempty"`
}

// Run pays up to the batch size of pending claims.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	claims, err := r.distributions.GetPendingClaims(ctx, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("load pending claims: %w", err)
	}

	result := &Result{Errors: []string{}}
	for _, c := range claims {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := r.payClaim(ctx, c); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("claim %s: %v", c.ClaimID, err))
			observability.RecordClaimPaid("failed", 0)
			continue
		}
		result.ClaimsPaid++
		result.SatsPaid += c.ClaimAmountSats
		observability.RecordClaimPaid("paid", c.ClaimAmountSats)
	}

	if result.ClaimsPaid > 0 || len(result.Errors) > 0 {
		r.logger.Printf("[payout] paid %d claims (%d sats), %d errors",
			result.ClaimsPaid, result.SatsPaid, len(result.Errors))
	}
	return result, nil
}

func (r *Runner) payClaim(ctx context.Context, c *domain.DividendClaim) error {
	if c.Handle == "" {
		return fmt.Errorf("holder %s has no payment handle", c.HolderID)
	}

	memo := fmt.Sprintf("dividend %s", c.DistributionID)
	txID, err := r.executor.Pay(ctx, c.Handle, c.ClaimAmountSats, memo)
	if err != nil {
		return fmt.Errorf("pay %s: %w", c.Handle, err)
	}

	if err := r.ledger.MarkClaimPaid(ctx, c.ClaimID, txID, r.now()); err != nil {
		// The payment went out but the claim row did not flip. Needs
		// manual review before the next run retries it.
		r.logger.Printf("[payout] PAID BUT UNMARKED claim %s tx %s: %v", c.ClaimID, txID, err)
		return fmt.Errorf("mark claim paid (tx %s already sent): %w", txID, err)
	}
	return nil
}
