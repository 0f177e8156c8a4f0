package memory

import (
	"context"
	"sort"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

// DistributionStore is an in-memory implementation of
// storage.DistributionStore.
type DistributionStore struct {
	s *Store
}

// NewDistributionStore creates a distribution store over the shared core.
func NewDistributionStore(s *Store) *DistributionStore {
	return &DistributionStore{s: s}
}

// Compile-time interface check.
var _ storage.DistributionStore = (*DistributionStore)(nil)

// GetByID retrieves a distribution. Returns ErrNotFound if not exists.
func (st *DistributionStore) GetByID(_ context.Context, distributionID string) (*domain.DividendDistribution, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.distributions[distributionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	distCopy := *d
	return &distCopy, nil
}

// GetClaims retrieves all claims of a distribution, ordered by holder_id ASC.
func (st *DistributionStore) GetClaims(_ context.Context, distributionID string) ([]*domain.DividendClaim, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DividendClaim
	for _, c := range s.claims {
		if c.DistributionID == distributionID {
			claimCopy := *c
			result = append(result, &claimCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].HolderID < result[j].HolderID
	})

	return result, nil
}

// GetPendingClaims retrieves up to limit pending claims, oldest
// distribution first.
func (st *DistributionStore) GetPendingClaims(_ context.Context, limit int) ([]*domain.DividendClaim, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DividendClaim
	for _, c := range s.claims {
		if c.Status == domain.ClaimPending {
			claimCopy := *c
			result = append(result, &claimCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		di, dj := s.distributions[result[i].DistributionID], s.distributions[result[j].DistributionID]
		if di != nil && dj != nil && di.DistributedAt != dj.DistributedAt {
			return di.DistributedAt < dj.DistributedAt
		}
		return result[i].ClaimID < result[j].ClaimID
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	return result, nil
}
