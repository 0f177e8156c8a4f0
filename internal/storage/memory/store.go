// Package memory provides in-memory implementations of the storage
// interfaces. Used by tests and the --use-memory server mode. The
// shared core's single mutex stands in for database transactions:
// every mutating operation is all-or-nothing under the lock, mirroring
// the Postgres backend's transactional guarantees.
package memory

import (
	"sync"

	"token-market/internal/domain"
)

// Store is the shared in-memory core behind the per-entity stores and
// the ledger. All of them must be built over the same Store so that
// transactional ledger operations see the same data.
type Store struct {
	mu sync.RWMutex

	tokens        map[string]*domain.Token                // keyed by token_id
	holders       map[holderKey]*domain.Holder            // keyed by (holder_id, token_id)
	orders        map[string]*domain.Order                // keyed by order_id
	trades        map[string]*domain.Trade                // keyed by trade_id
	distributions map[string]*domain.DividendDistribution // keyed by distribution_id
	claims        map[string]*domain.DividendClaim        // keyed by claim_id

	// tokenLocks serializes matching per token, independent of mu.
	tokenLocksMu sync.Mutex
	tokenLocks   map[string]*sync.Mutex
}

type holderKey struct {
	holderID string
	tokenID  string
}

// NewStore creates an empty in-memory core.
func NewStore() *Store {
	return &Store{
		tokens:        make(map[string]*domain.Token),
		holders:       make(map[holderKey]*domain.Holder),
		orders:        make(map[string]*domain.Order),
		trades:        make(map[string]*domain.Trade),
		distributions: make(map[string]*domain.DividendDistribution),
		claims:        make(map[string]*domain.DividendClaim),
		tokenLocks:    make(map[string]*sync.Mutex),
	}
}

// tokenLock returns the per-token matching mutex, creating it on first use.
func (s *Store) tokenLock(tokenID string) *sync.Mutex {
	s.tokenLocksMu.Lock()
	defer s.tokenLocksMu.Unlock()

	lock, ok := s.tokenLocks[tokenID]
	if !ok {
		lock = &sync.Mutex{}
		s.tokenLocks[tokenID] = lock
	}
	return lock
}
