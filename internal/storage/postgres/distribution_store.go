package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// DistributionStore implements storage.DistributionStore using PostgreSQL.
type DistributionStore struct {
	pool *Pool
}

// NewDistributionStore creates a new DistributionStore.
func NewDistributionStore(pool *Pool) *DistributionStore {
	return &DistributionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DistributionStore = (*DistributionStore)(nil)

const distributionColumns = `distribution_id, token_id, total_amount_sats, per_unit_sats, circulating_supply_snapshot, dust_sats, source, currency, distributed_at`

const claimColumns = `claim_id, distribution_id, holder_id, handle, balance_snapshot, claim_amount_sats, status, payment_tx_id, claimed_at`

// GetByID retrieves a distribution. Returns ErrNotFound if not exists.
func (s *DistributionStore) GetByID(ctx context.Context, distributionID string) (*domain.DividendDistribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM dividend_distributions WHERE distribution_id = $1`

	row := s.pool.QueryRow(ctx, query, distributionID)
	d, err := scanDistribution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get distribution by id: %w", err)
	}
	return d, nil
}

// GetClaims retrieves all claims of a distribution, ordered by holder_id ASC.
func (s *DistributionStore) GetClaims(ctx context.Context, distributionID string) ([]*domain.DividendClaim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM dividend_claims
		WHERE distribution_id = $1
		ORDER BY holder_id ASC
	`

	rows, err := s.pool.Query(ctx, query, distributionID)
	if err != nil {
		return nil, fmt.Errorf("get claims: %w", err)
	}
	defer rows.Close()

	return scanClaims(rows)
}

// GetPendingClaims retrieves up to limit pending claims, oldest
// distribution first.
func (s *DistributionStore) GetPendingClaims(ctx context.Context, limit int) ([]*domain.DividendClaim, error) {
	query := `
		SELECT c.claim_id, c.distribution_id, c.holder_id, c.handle, c.balance_snapshot, c.claim_amount_sats, c.status, c.payment_tx_id, c.claimed_at
		FROM dividend_claims c
		JOIN dividend_distributions d ON d.distribution_id = c.distribution_id
		WHERE c.status = 'pending'
		ORDER BY d.distributed_at ASC, c.claim_id ASC
		LIMIT $1
	`
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending claims: %w", err)
	}
	defer rows.Close()

	return scanClaims(rows)
}

// scanDistribution scans a single row into a DividendDistribution.
func scanDistribution(row pgx.Row) (*domain.DividendDistribution, error) {
	var d domain.DividendDistribution
	err := row.Scan(
		&d.DistributionID,
		&d.TokenID,
		&d.TotalAmountSats,
		&d.PerUnitSats,
		&d.CirculatingSupplySnapshot,
		&d.DustSats,
		&d.Source,
		&d.Currency,
		&d.DistributedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// scanClaim scans a single row into a DividendClaim.
func scanClaim(row pgx.Row) (*domain.DividendClaim, error) {
	var c domain.DividendClaim
	var status string

	err := row.Scan(
		&c.ClaimID,
		&c.DistributionID,
		&c.HolderID,
		&c.Handle,
		&c.BalanceSnapshot,
		&c.ClaimAmountSats,
		&status,
		&c.PaymentTxID,
		&c.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = domain.ClaimStatus(status)
	return &c, nil
}

// scanClaims scans multiple rows into a slice of DividendClaim.
func scanClaims(rows pgx.Rows) ([]*domain.DividendClaim, error) {
	var claims []*domain.DividendClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return claims, nil
}
