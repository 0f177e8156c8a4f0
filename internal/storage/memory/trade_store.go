package memory

import (
	"context"
	"sort"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	s *Store
}

// NewTradeStore creates a trade store over the shared core.
func NewTradeStore(s *Store) *TradeStore {
	return &TradeStore{s: s}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// GetByToken retrieves the most recent trades for a token, ordered by
// executed_at DESC, up to limit.
func (st *TradeStore) GetByToken(_ context.Context, tokenID string, limit int) ([]*domain.Trade, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.trades {
		if t.TokenID == tokenID {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt != result[j].ExecutedAt {
			return result[i].ExecutedAt > result[j].ExecutedAt
		}
		return result[i].TradeID > result[j].TradeID
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	return result, nil
}
