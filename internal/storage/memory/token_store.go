package memory

import (
	"context"
	"sort"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	s *Store
}

// NewTokenStore creates a token store over the shared core.
func NewTokenStore(s *Store) *TokenStore {
	return &TokenStore{s: s}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if token_id or
// symbol exists.
func (st *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.TokenID == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}
	if t.TotalSupply < 1 || t.TreasuryBalance < 0 || t.TreasuryBalance > t.TotalSupply {
		return storage.ErrInvalidInput
	}

	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[t.TokenID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, other := range s.tokens {
		if other.Symbol == t.Symbol {
			return storage.ErrDuplicateKey
		}
	}

	// Store a copy to prevent external mutation
	tokenCopy := *t
	s.tokens[t.TokenID] = &tokenCopy
	return nil
}

// GetByID retrieves a token by its ID. Returns ErrNotFound if not exists.
func (st *TokenStore) GetByID(_ context.Context, tokenID string) (*domain.Token, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tokens[tokenID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokenCopy := *t
	return &tokenCopy, nil
}

// GetBySymbol retrieves a token by symbol. Returns ErrNotFound if not exists.
func (st *TokenStore) GetBySymbol(_ context.Context, symbol string) (*domain.Token, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.Symbol == symbol {
			tokenCopy := *t
			return &tokenCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// List retrieves all tokens ordered by symbol.
func (st *TokenStore) List(_ context.Context) ([]*domain.Token, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		tokenCopy := *t
		result = append(result, &tokenCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}
