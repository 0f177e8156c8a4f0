package memory

import (
	"context"
	"sort"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	s *Store
}

// NewOrderStore creates an order store over the shared core.
func NewOrderStore(s *Store) *OrderStore {
	return &OrderStore{s: s}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
func (st *OrderStore) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[orderID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	orderCopy := *o
	return &orderCopy, nil
}

// GetOpenByToken retrieves all open and partially filled orders for a
// token, ordered by created_at ASC, order_id ASC.
func (st *OrderStore) GetOpenByToken(_ context.Context, tokenID string) ([]*domain.Order, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.orders {
		if o.TokenID == tokenID && !o.Status.Terminal() {
			orderCopy := *o
			result = append(result, &orderCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].OrderID < result[j].OrderID
	})

	return result, nil
}
