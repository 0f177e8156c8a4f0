package memory

import (
	"context"
	"sort"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// HolderStore is an in-memory implementation of storage.HolderStore.
type HolderStore struct {
	s *Store
}

// NewHolderStore creates a holder store over the shared core.
func NewHolderStore(s *Store) *HolderStore {
	return &HolderStore{s: s}
}

// Compile-time interface check.
var _ storage.HolderStore = (*HolderStore)(nil)

// Upsert inserts or replaces a holder position.
func (st *HolderStore) Upsert(_ context.Context, h *domain.Holder) error {
	if h == nil || h.HolderID == "" || h.TokenID == "" {
		return storage.ErrInvalidInput
	}
	if h.Balance < 0 || h.StakedBalance < 0 || h.StakedBalance > h.Balance ||
		h.EscrowSats < 0 || h.ProceedsSats < 0 {
		return storage.ErrInvalidInput
	}

	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	holderCopy := *h
	s.holders[holderKey{h.HolderID, h.TokenID}] = &holderCopy
	return nil
}

// Get retrieves one holder position. Returns ErrNotFound if not exists.
func (st *HolderStore) Get(_ context.Context, holderID, tokenID string) (*domain.Holder, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.holders[holderKey{holderID, tokenID}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	holderCopy := *h
	return &holderCopy, nil
}

// GetByToken retrieves all holder positions for a token, ordered by
// holder_id ASC.
func (st *HolderStore) GetByToken(_ context.Context, tokenID string) ([]*domain.Holder, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Holder
	for _, h := range s.holders {
		if h.TokenID == tokenID {
			holderCopy := *h
			result = append(result, &holderCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].HolderID < result[j].HolderID
	})

	return result, nil
}
