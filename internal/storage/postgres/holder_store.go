package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// HolderStore implements storage.HolderStore using PostgreSQL.
type HolderStore struct {
	pool *Pool
}

// NewHolderStore creates a new HolderStore.
func NewHolderStore(pool *Pool) *HolderStore {
	return &HolderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HolderStore = (*HolderStore)(nil)

const holderColumns = `holder_id, token_id, handle, chain_address, balance, staked_balance, escrow_sats, proceeds_sats, total_purchased, total_spent_sats, updated_at`

// Upsert inserts or replaces a holder position.
func (s *HolderStore) Upsert(ctx context.Context, h *domain.Holder) error {
	if h == nil || h.HolderID == "" || h.TokenID == "" {
		return storage.ErrInvalidInput
	}
	if h.Balance < 0 || h.StakedBalance < 0 || h.StakedBalance > h.Balance ||
		h.EscrowSats < 0 || h.ProceedsSats < 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO holders (` + holderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (holder_id, token_id) DO UPDATE SET
			handle           = EXCLUDED.handle,
			chain_address    = EXCLUDED.chain_address,
			balance          = EXCLUDED.balance,
			staked_balance   = EXCLUDED.staked_balance,
			escrow_sats      = EXCLUDED.escrow_sats,
			proceeds_sats    = EXCLUDED.proceeds_sats,
			total_purchased  = EXCLUDED.total_purchased,
			total_spent_sats = EXCLUDED.total_spent_sats,
			updated_at       = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		h.HolderID,
		h.TokenID,
		h.Handle,
		h.ChainAddress,
		h.Balance,
		h.StakedBalance,
		h.EscrowSats,
		h.ProceedsSats,
		h.TotalPurchased,
		h.TotalSpentSats,
		h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert holder: %w", err)
	}
	return nil
}

// Get retrieves one holder position. Returns ErrNotFound if not exists.
func (s *HolderStore) Get(ctx context.Context, holderID, tokenID string) (*domain.Holder, error) {
	query := `SELECT ` + holderColumns + ` FROM holders WHERE holder_id = $1 AND token_id = $2`

	row := s.pool.QueryRow(ctx, query, holderID, tokenID)
	h, err := scanHolder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holder: %w", err)
	}
	return h, nil
}

// GetByToken retrieves all holder positions for a token, ordered by
// holder_id ASC.
func (s *HolderStore) GetByToken(ctx context.Context, tokenID string) ([]*domain.Holder, error) {
	query := `SELECT ` + holderColumns + ` FROM holders WHERE token_id = $1 ORDER BY holder_id ASC`

	rows, err := s.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("get holders by token: %w", err)
	}
	defer rows.Close()

	return scanHolders(rows)
}

// scanHolder scans a single row into a Holder.
func scanHolder(row pgx.Row) (*domain.Holder, error) {
	var h domain.Holder
	err := row.Scan(
		&h.HolderID,
		&h.TokenID,
		&h.Handle,
		&h.ChainAddress,
		&h.Balance,
		&h.StakedBalance,
		&h.EscrowSats,
		&h.ProceedsSats,
		&h.TotalPurchased,
		&h.TotalSpentSats,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// scanHolders scans multiple rows into a slice of Holder.
func scanHolders(rows pgx.Rows) ([]*domain.Holder, error) {
	var holders []*domain.Holder
	for rows.Next() {
		h, err := scanHolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holders: %w", err)
	}
	return holders, nil
}
