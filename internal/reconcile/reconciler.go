// Package reconcile diffs the database ledger against the chain
// oracle. Report-only: on-chain is the source of truth, and blind
// auto-repair of a divergent ledger could double-credit or destroy
// funds on a transient oracle error, so nothing here mutates storage.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"token-market/internal/chain"
	"token-market/internal/domain"
	"token-market/internal/market"
	"token-market/internal/storage"
)

// Reconciler compares per-holder and treasury balances between the
// database and the chain oracle.
type Reconciler struct {
	tokens  storage.TokenStore
	holders storage.HolderStore
	oracle  chain.Oracle
	logger  *log.Logger
	now     func() int64
}

// Options configures a Reconciler. Tokens, Holders and Oracle are
// required.
type Options struct {
	Tokens  storage.TokenStore
	Holders storage.HolderStore
	Oracle  chain.Oracle
	Logger  *log.Logger
	Now     func() int64
}

// NewReconciler creates a reconciler.
func NewReconciler(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Reconciler{
		tokens:  opts.Tokens,
		holders: opts.Holders,
		oracle:  opts.Oracle,
		logger:  logger,
		now:     now,
	}
}

// Reconcile fetches the chain's view of one token and diffs it against
// the database. Holders without a chain address are skipped with a log
// line; they cannot be verified against the chain.
func (r *Reconciler) Reconcile(ctx context.Context, tokenID string) (*domain.ReconciliationReport, error) {
	if tokenID == "" {
		return nil, market.Validationf("token_id is required")
	}

	token, err := r.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: token %s", market.ErrNotFound, tokenID)
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	holders, err := r.holders.GetByToken(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("load holders: %w", err)
	}

	snapshot, holderByAddress, err := r.fetchChainState(ctx, token, holders)
	if err != nil {
		return nil, err
	}

	report := &domain.ReconciliationReport{
		TokenID:       tokenID,
		InSync:        true,
		ChainTreasury: snapshot.TreasuryBalance,
		DBTreasury:    token.TreasuryBalance,
		Discrepancies: []domain.BalanceDiscrepancy{},
		ReconciledAt:  snapshot.FetchedAt,
	}

	if token.TreasuryBalance != snapshot.TreasuryBalance {
		report.InSync = false
		report.Discrepancies = append(report.Discrepancies, domain.BalanceDiscrepancy{
			ChainAddress: token.TreasuryAddress,
			DBBalance:    token.TreasuryBalance,
			ChainBalance: snapshot.TreasuryBalance,
			Delta:        snapshot.TreasuryBalance - token.TreasuryBalance,
		})
	}

	for _, h := range holders {
		report.DBCirculating += h.Balance
	}

	addresses := make([]string, 0, len(holderByAddress))
	for address := range holderByAddress {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	for _, address := range addresses {
		h := holderByAddress[address]
		chainBalance := snapshot.HolderBalances[address]
		report.ChainCirculating += chainBalance

		if h.Balance != chainBalance {
			report.InSync = false
			report.Discrepancies = append(report.Discrepancies, domain.BalanceDiscrepancy{
				HolderID:     h.HolderID,
				ChainAddress: address,
				DBBalance:    h.Balance,
				ChainBalance: chainBalance,
				Delta:        chainBalance - h.Balance,
			})
		}
	}

	if !report.InSync {
		r.logger.Printf("[reconcile] %s out of sync: %d discrepancies (db treasury %d, chain treasury %d)",
			tokenID, len(report.Discrepancies), report.DBTreasury, report.ChainTreasury)
	}
	return report, nil
}

// fetchChainState queries the oracle for the treasury and all
// addressed holders of a token.
func (r *Reconciler) fetchChainState(ctx context.Context, token *domain.Token, holders []*domain.Holder) (*domain.OnChainSnapshot, map[string]*domain.Holder, error) {
	holderByAddress := make(map[string]*domain.Holder, len(holders))
	addresses := make([]string, 0, len(holders))
	for _, h := range holders {
		if h.ChainAddress == "" {
			r.logger.Printf("[reconcile] holder %s has no chain address, skipping", h.HolderID)
			continue
		}
		if !chain.ValidAddress(h.ChainAddress) {
			r.logger.Printf("[reconcile] holder %s has malformed chain address %q, skipping", h.HolderID, h.ChainAddress)
			continue
		}
		holderByAddress[h.ChainAddress] = h
		addresses = append(addresses, h.ChainAddress)
	}

	treasury, err := r.oracle.GetTreasuryBalance(ctx, token.TreasuryAddress)
	if err != nil {
		return nil, nil, market.External("chain oracle", err)
	}

	balances := map[string]int64{}
	if len(addresses) > 0 {
		balances, err = r.oracle.GetHolderBalances(ctx, addresses)
		if err != nil {
			return nil, nil, market.External("chain oracle", err)
		}
	}

	return &domain.OnChainSnapshot{
		TokenID:         token.TokenID,
		TreasuryBalance: treasury,
		HolderBalances:  balances,
		FetchedAt:       r.now(),
	}, holderByAddress, nil
}
