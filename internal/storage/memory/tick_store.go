package memory

import (
	"context"
	"sort"
	"sync"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
// Carries its own lock: tick writes happen after the ledger commit and
// never participate in ledger transactions.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[tickKey]*domain.TradeTick
}

type tickKey struct {
	tokenID string
	tradeID string
}

// NewTickStore creates an empty tick store.
func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[tickKey]*domain.TradeTick)}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertTicks appends trade ticks. Replayed (token_id, trade_id) pairs
// overwrite in place, matching the ReplacingMergeTree backend.
func (st *TickStore) InsertTicks(_ context.Context, ticks []*domain.TradeTick) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, tick := range ticks {
		if tick == nil || tick.TokenID == "" || tick.TradeID == "" {
			return storage.ErrInvalidInput
		}
		tickCopy := *tick
		st.ticks[tickKey{tick.TokenID, tick.TradeID}] = &tickCopy
	}
	return nil
}

// GetRecent retrieves the most recent ticks for a token, ordered by
// executed_at DESC, up to limit.
func (st *TickStore) GetRecent(_ context.Context, tokenID string, limit int) ([]*domain.TradeTick, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var result []*domain.TradeTick
	for _, tick := range st.ticks {
		if tick.TokenID == tokenID {
			tickCopy := *tick
			result = append(result, &tickCopy)
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

// Stats aggregates trade count, volume and high/low/last price for a
// token over ticks with executed_at >= sinceMs.
func (st *TickStore) Stats(_ context.Context, tokenID string, sinceMs int64) (*domain.MarketStats, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	stats := &domain.MarketStats{TokenID: tokenID, WindowStartMs: sinceMs}
	var lastAt int64
	var lastID string

	for _, tick := range st.ticks {
		if tick.TokenID != tokenID || tick.ExecutedAt < sinceMs {
			continue
		}
		stats.TradeCount++
		stats.VolumeUnits += tick.Quantity
		stats.VolumeSats += tick.TotalSats
		if stats.HighPriceSats == 0 || tick.PriceSats > stats.HighPriceSats {
			stats.HighPriceSats = tick.PriceSats
		}
		if stats.LowPriceSats == 0 || tick.PriceSats < stats.LowPriceSats {
			stats.LowPriceSats = tick.PriceSats
		}
		if tick.ExecutedAt > lastAt || (tick.ExecutedAt == lastAt && tick.TradeID > lastID) {
			lastAt = tick.ExecutedAt
			lastID = tick.TradeID
			stats.LastPriceSats = tick.PriceSats
		}
	}
	return stats, nil
}
