package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

const orderColumns = `order_id, token_id, holder_id, side, limit_price_sats, quantity, filled_quantity, status, created_at`

// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	row := s.pool.QueryRow(ctx, query, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// GetOpenByToken retrieves all open and partially filled orders for a
// token, ordered by created_at ASC, order_id ASC.
func (s *OrderStore) GetOpenByToken(ctx context.Context, tokenID string) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE token_id = $1 AND status IN ('open', 'partially_filled')
		ORDER BY created_at ASC, order_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// scanOrder scans a single row into an Order.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var side, status string

	err := row.Scan(
		&o.OrderID,
		&o.TokenID,
		&o.HolderID,
		&side,
		&o.LimitPriceSats,
		&o.Quantity,
		&o.FilledQuantity,
		&status,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}
