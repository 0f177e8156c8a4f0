package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `trade_id, token_id, buy_order_id, sell_order_id, buyer_id, seller_id, quantity, price_sats, total_sats, executed_at`

// GetByToken retrieves the most recent trades for a token, ordered by
// executed_at DESC, up to limit.
func (s *TradeStore) GetByToken(ctx context.Context, tokenID string, limit int) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE token_id = $1
		ORDER BY executed_at DESC, trade_id DESC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, query, tokenID, limit)
	if err != nil {
		return nil, fmt.Errorf("get trades by token: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	err := row.Scan(
		&t.TradeID,
		&t.TokenID,
		&t.BuyOrderID,
		&t.SellOrderID,
		&t.BuyerID,
		&t.SellerID,
		&t.Quantity,
		&t.PriceSats,
		&t.TotalSats,
		&t.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
