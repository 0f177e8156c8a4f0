package memory

import (
	"context"
	"sort"
	"time"

	"token-market/internal/domain"
	"token-market/internal/market"
	"token-market/internal/storage"
)

// Ledger is an in-memory implementation of storage.Ledger. All
// multi-row mutations happen under the core's write lock, so partial
// application is never observable.
type Ledger struct {
	s *Store
}

// NewLedger creates a ledger over the shared core.
func NewLedger(s *Store) *Ledger {
	return &Ledger{s: s}
}

// Compile-time interface check.
var _ storage.Ledger = (*Ledger)(nil)

// CreateOrder validates funding and inserts the order with status open.
func (l *Ledger) CreateOrder(_ context.Context, o *domain.Order) error {
	if o == nil || o.OrderID == "" || o.TokenID == "" || o.HolderID == "" {
		return storage.ErrInvalidInput
	}
	if !o.Side.Valid() || o.Quantity < 1 || o.LimitPriceSats < 1 {
		return storage.ErrInvalidInput
	}
	cost, ok := domain.CostSats(o.Quantity, o.LimitPriceSats)
	if !ok {
		return storage.ErrInvalidInput
	}

	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.OrderID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.tokens[o.TokenID]; !exists {
		return storage.ErrNotFound
	}
	h, exists := s.holders[holderKey{o.HolderID, o.TokenID}]
	if !exists {
		return storage.ErrNotFound
	}

	switch o.Side {
	case domain.SideSell:
		available := h.AvailableBalance()
		if available < o.Quantity {
			return &market.InsufficientBalanceError{
				HolderID:  o.HolderID,
				TokenID:   o.TokenID,
				Requested: o.Quantity,
				Available: available,
			}
		}
		h.StakedBalance += o.Quantity
	case domain.SideBuy:
		if h.ProceedsSats < cost {
			return &market.InsufficientBalanceError{
				HolderID:  o.HolderID,
				TokenID:   o.TokenID,
				Requested: cost,
				Available: h.ProceedsSats,
			}
		}
		h.ProceedsSats -= cost
		h.EscrowSats += cost
	}
	h.UpdatedAt = nowMillis()

	orderCopy := *o
	orderCopy.FilledQuantity = 0
	orderCopy.Status = domain.OrderOpen
	s.orders[o.OrderID] = &orderCopy
	return nil
}

// CancelOrder marks a non-terminal order cancelled and releases its
// remaining stake or escrow.
func (l *Ledger) CancelOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[orderID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	if o.Status.Terminal() {
		return nil, storage.ErrConflict
	}

	h, exists := s.holders[holderKey{o.HolderID, o.TokenID}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	remaining := o.RemainingQuantity()
	switch o.Side {
	case domain.SideSell:
		h.StakedBalance -= remaining
	case domain.SideBuy:
		locked := remaining * o.LimitPriceSats
		h.EscrowSats -= locked
		h.ProceedsSats += locked
	}
	h.UpdatedAt = nowMillis()

	o.Status = domain.OrderCancelled

	orderCopy := *o
	return &orderCopy, nil
}

// ApplyTrade atomically moves units seller->buyer and sats
// buyer-escrow->seller, updates both orders, and appends the trade.
func (l *Ledger) ApplyTrade(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.Quantity < 1 || t.PriceSats < 1 {
		return storage.ErrInvalidInput
	}
	if total, ok := domain.CostSats(t.Quantity, t.PriceSats); !ok || t.TotalSats != total {
		return storage.ErrInvalidInput
	}

	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	buyOrder, exists := s.orders[t.BuyOrderID]
	if !exists {
		return storage.ErrNotFound
	}
	sellOrder, exists := s.orders[t.SellOrderID]
	if !exists {
		return storage.ErrNotFound
	}
	if buyOrder.TokenID != t.TokenID || sellOrder.TokenID != t.TokenID {
		return storage.ErrInvalidInput
	}
	if buyOrder.Status.Terminal() || sellOrder.Status.Terminal() {
		return storage.ErrConflict
	}
	if buyOrder.RemainingQuantity() < t.Quantity || sellOrder.RemainingQuantity() < t.Quantity {
		return storage.ErrConflict
	}

	buyer, exists := s.holders[holderKey{t.BuyerID, t.TokenID}]
	if !exists {
		return storage.ErrNotFound
	}
	seller, exists := s.holders[holderKey{t.SellerID, t.TokenID}]
	if !exists {
		return storage.ErrNotFound
	}

	// Escrow was locked at the buy order's limit price; the trade
	// executes at the maker's price, which may be lower. The difference
	// is refunded to the buyer's spendable sats.
	lockedForQuantity := t.Quantity * buyOrder.LimitPriceSats
	refund := lockedForQuantity - t.TotalSats
	if refund < 0 {
		return storage.ErrInvalidInput // trade above the buyer's limit
	}
	if buyer.EscrowSats < lockedForQuantity {
		return &market.InsufficientBalanceError{
			HolderID:  t.BuyerID,
			TokenID:   t.TokenID,
			Requested: lockedForQuantity,
			Available: buyer.EscrowSats,
		}
	}
	if seller.StakedBalance < t.Quantity || seller.Balance < t.Quantity {
		return &market.InsufficientBalanceError{
			HolderID:  t.SellerID,
			TokenID:   t.TokenID,
			Requested: t.Quantity,
			Available: seller.StakedBalance,
		}
	}

	now := nowMillis()

	buyer.EscrowSats -= lockedForQuantity
	buyer.ProceedsSats += refund
	buyer.Balance += t.Quantity
	buyer.TotalPurchased += t.Quantity
	buyer.TotalSpentSats += t.TotalSats
	buyer.UpdatedAt = now

	seller.Balance -= t.Quantity
	seller.StakedBalance -= t.Quantity
	seller.ProceedsSats += t.TotalSats
	seller.UpdatedAt = now

	buyOrder.FilledQuantity += t.Quantity
	buyOrder.Status = buyOrder.StatusForFill(buyOrder.FilledQuantity)
	sellOrder.FilledQuantity += t.Quantity
	sellOrder.Status = sellOrder.StatusForFill(sellOrder.FilledQuantity)

	tradeCopy := *t
	s.trades[t.TradeID] = &tradeCopy
	return nil
}

// PurchaseFromTreasury sells quantity units from the token treasury to
// a pre-funded holder at costSats total.
func (l *Ledger) PurchaseFromTreasury(_ context.Context, tokenID, holderID string, quantity, expectedRemaining, costSats int64) error {
	if quantity < 1 || costSats < 1 {
		return storage.ErrInvalidInput
	}

	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, exists := s.tokens[tokenID]
	if !exists {
		return storage.ErrNotFound
	}
	if tok.TreasuryBalance != expectedRemaining {
		return storage.ErrConflict // treasury moved since the quote
	}
	if tok.TreasuryBalance < quantity {
		return storage.ErrConflict
	}

	h, exists := s.holders[holderKey{holderID, tokenID}]
	if !exists {
		return storage.ErrNotFound
	}
	if h.ProceedsSats < costSats {
		return &market.InsufficientBalanceError{
			HolderID:  holderID,
			TokenID:   tokenID,
			Requested: costSats,
			Available: h.ProceedsSats,
		}
	}

	tok.TreasuryBalance -= quantity

	h.ProceedsSats -= costSats
	h.Balance += quantity
	h.TotalPurchased += quantity
	h.TotalSpentSats += costSats
	h.UpdatedAt = nowMillis()
	return nil
}

// SnapshotBalances returns all holder positions with balance > 0 for a
// token, ordered by holder_id ASC. Consistent by construction: the read
// happens entirely under the core lock.
func (l *Ledger) SnapshotBalances(_ context.Context, tokenID string) ([]*domain.Holder, error) {
	s := l.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Holder
	for _, h := range s.holders {
		if h.TokenID == tokenID && h.Balance > 0 {
			holderCopy := *h
			result = append(result, &holderCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].HolderID < result[j].HolderID
	})
	return result, nil
}

// RecordDistribution inserts one distribution and its claims,
// all-or-nothing.
func (l *Ledger) RecordDistribution(_ context.Context, d *domain.DividendDistribution, claims []*domain.DividendClaim) error {
	if d == nil || d.DistributionID == "" {
		return storage.ErrInvalidInput
	}

	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.distributions[d.DistributionID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, c := range claims {
		if c == nil || c.ClaimID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.claims[c.ClaimID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	distCopy := *d
	s.distributions[d.DistributionID] = &distCopy
	for _, c := range claims {
		claimCopy := *c
		s.claims[c.ClaimID] = &claimCopy
	}
	return nil
}

// MarkClaimPaid flips one pending claim to claimed.
func (l *Ledger) MarkClaimPaid(_ context.Context, claimID, paymentTxID string, claimedAt int64) error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.claims[claimID]
	if !exists {
		return storage.ErrNotFound
	}
	if c.Status != domain.ClaimPending {
		return storage.ErrConflict
	}

	c.Status = domain.ClaimClaimed
	c.PaymentTxID = paymentTxID
	c.ClaimedAt = claimedAt
	return nil
}

// WithTokenLock runs fn while holding the per-token matching lock.
func (l *Ledger) WithTokenLock(ctx context.Context, tokenID string, fn func(ctx context.Context) error) error {
	lock := l.s.tokenLock(tokenID)
	lock.Lock()
	defer lock.Unlock()

	return fn(ctx)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
