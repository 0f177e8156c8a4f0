package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `token_id, symbol, pricing_model, base_price_sats, decay_factor, total_supply, treasury_balance, treasury_address, created_at`

// Insert adds a new token. Returns ErrDuplicateKey if token_id or
// symbol exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	if t == nil || t.TokenID == "" || t.Symbol == "" || !t.PricingModel.Valid() {
		return storage.ErrInvalidInput
	}
	if t.TotalSupply < 1 || t.TreasuryBalance < 0 || t.TreasuryBalance > t.TotalSupply {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TokenID,
		t.Symbol,
		string(t.PricingModel),
		t.BasePriceSats,
		t.DecayFactor,
		t.TotalSupply,
		t.TreasuryBalance,
		t.TreasuryAddress,
		t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByID retrieves a token by its ID. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByID(ctx context.Context, tokenID string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE token_id = $1`

	row := s.pool.QueryRow(ctx, query, tokenID)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by id: %w", err)
	}
	return t, nil
}

// GetBySymbol retrieves a token by symbol. Returns ErrNotFound if not exists.
func (s *TokenStore) GetBySymbol(ctx context.Context, symbol string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE symbol = $1`

	row := s.pool.QueryRow(ctx, query, symbol)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by symbol: %w", err)
	}
	return t, nil
}

// List retrieves all tokens ordered by symbol.
func (s *TokenStore) List(ctx context.Context) ([]*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens ORDER BY symbol ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var modelStr string

	err := row.Scan(
		&t.TokenID,
		&t.Symbol,
		&modelStr,
		&t.BasePriceSats,
		&t.DecayFactor,
		&t.TotalSupply,
		&t.TreasuryBalance,
		&t.TreasuryAddress,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.PricingModel = domain.PricingModel(modelStr)
	return &t, nil
}
