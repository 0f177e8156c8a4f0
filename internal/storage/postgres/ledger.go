package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"

	"token-market/internal/domain"
	"token-market/internal/market"
	"token-market/internal/observability"
	"token-market/internal/storage"
)

// Ledger implements storage.Ledger using PostgreSQL transactions.
// Every method runs its reads and writes inside a single transaction
// with row locks, so balance updates, order fills and trade inserts
// commit or roll back together.
type Ledger struct {
	pool *Pool
}

// NewLedger creates a new Ledger over the shared pool.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Compile-time interface check.
var _ storage.Ledger = (*Ledger)(nil)

// withTx runs fn inside a transaction, committing on nil error and
// rolling back otherwise. op labels the transaction in query metrics.
func (l *Ledger) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
	}()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err = fn(tx); err != nil {
		if isSerializationError(err) {
			return storage.ErrConflict
		}
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockHolder reads one holder row FOR UPDATE.
func lockHolder(ctx context.Context, tx pgx.Tx, holderID, tokenID string) (*domain.Holder, error) {
	query := `SELECT ` + holderColumns + ` FROM holders WHERE holder_id = $1 AND token_id = $2 FOR UPDATE`
	h, err := scanHolder(tx.QueryRow(ctx, query, holderID, tokenID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("lock holder: %w", err)
	}
	return h, nil
}

// lockOrder reads one order row FOR UPDATE.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1 FOR UPDATE`
	o, err := scanOrder(tx.QueryRow(ctx, query, orderID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

func updateHolderFunds(ctx context.Context, tx pgx.Tx, h *domain.Holder) error {
	query := `
		UPDATE holders SET
			balance          = $3,
			staked_balance   = $4,
			escrow_sats      = $5,
			proceeds_sats    = $6,
			total_purchased  = $7,
			total_spent_sats = $8,
			updated_at       = $9
		WHERE holder_id = $1 AND token_id = $2
	`
	_, err := tx.Exec(ctx, query,
		h.HolderID, h.TokenID,
		h.Balance, h.StakedBalance, h.EscrowSats, h.ProceedsSats,
		h.TotalPurchased, h.TotalSpentSats, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update holder funds: %w", err)
	}
	return nil
}

func updateOrderFill(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `UPDATE orders SET filled_quantity = $2, status = $3 WHERE order_id = $1`
	_, err := tx.Exec(ctx, query, o.OrderID, o.FilledQuantity, string(o.Status))
	if err != nil {
		return fmt.Errorf("update order fill: %w", err)
	}
	return nil
}

// CreateOrder inserts an order and locks the placer's funds: units
// into staked_balance for sells, sats into escrow_sats for buys.
func (l *Ledger) CreateOrder(ctx context.Context, o *domain.Order) error {
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

	return l.withTx(ctx, "create_order", func(tx pgx.Tx) error {
		h, err := lockHolder(ctx, tx, o.HolderID, o.TokenID)
		if err != nil {
			return err
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
		h.UpdatedAt = o.CreatedAt

		if err := updateHolderFunds(ctx, tx, h); err != nil {
			return err
		}

		query := `
			INSERT INTO orders (` + orderColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, 0, 'open', $7)
		`
		_, err = tx.Exec(ctx, query,
			o.OrderID, o.TokenID, o.HolderID,
			string(o.Side), o.LimitPriceSats, o.Quantity, o.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

// CancelOrder marks a non-terminal order cancelled and releases its
// remaining stake or escrow. Returns ErrConflict for terminal orders.
func (l *Ledger) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var cancelled *domain.Order

	err := l.withTx(ctx, "cancel_order", func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return storage.ErrConflict
		}

		h, err := lockHolder(ctx, tx, o.HolderID, o.TokenID)
		if err != nil {
			return err
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

		if err := updateHolderFunds(ctx, tx, h); err != nil {
			return err
		}

		o.Status = domain.OrderCancelled
		if err := updateOrderFill(ctx, tx, o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// ApplyTrade atomically moves units seller->buyer and sats
// buyer-escrow->seller, updates both orders, and appends the trade.
func (l *Ledger) ApplyTrade(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.Quantity < 1 || t.PriceSats < 1 {
		return storage.ErrInvalidInput
	}
	if total, ok := domain.CostSats(t.Quantity, t.PriceSats); !ok || t.TotalSats != total {
		return storage.ErrInvalidInput
	}

	return l.withTx(ctx, "apply_trade", func(tx pgx.Tx) error {
		// Lock orders in a fixed key order to avoid deadlocks with
		// concurrent matchers.
		first, second := t.BuyOrderID, t.SellOrderID
		if second < first {
			first, second = second, first
		}
		firstOrder, err := lockOrder(ctx, tx, first)
		if err != nil {
			return err
		}
		secondOrder, err := lockOrder(ctx, tx, second)
		if err != nil {
			return err
		}
		buy, sell := firstOrder, secondOrder
		if buy.OrderID != t.BuyOrderID {
			buy, sell = secondOrder, firstOrder
		}

		if buy.Side != domain.SideBuy || sell.Side != domain.SideSell {
			return storage.ErrInvalidInput
		}
		if buy.TokenID != t.TokenID || sell.TokenID != t.TokenID {
			return storage.ErrInvalidInput
		}
		if buy.RemainingQuantity() < t.Quantity || sell.RemainingQuantity() < t.Quantity {
			return storage.ErrConflict
		}
		if buy.Status.Terminal() || sell.Status.Terminal() {
			return storage.ErrConflict
		}

		buyer, err := lockHolder(ctx, tx, t.BuyerID, t.TokenID)
		if err != nil {
			return err
		}
		seller := buyer
		if t.SellerID != t.BuyerID {
			seller, err = lockHolder(ctx, tx, t.SellerID, t.TokenID)
			if err != nil {
				return err
			}
		}

		// Escrow was taken at the buyer's limit price; the trade
		// executes at the maker price, so the difference is refunded.
		lockedForQuantity := t.Quantity * buy.LimitPriceSats
		refund := lockedForQuantity - t.TotalSats
		if refund < 0 {
			return storage.ErrInvalidInput
		}
		if buyer.EscrowSats < lockedForQuantity {
			return &market.InsufficientBalanceError{
				HolderID:  t.BuyerID,
				TokenID:   t.TokenID,
				Requested: lockedForQuantity,
				Available: buyer.EscrowSats,
			}
		}
		if seller.StakedBalance < t.Quantity {
			return &market.InsufficientBalanceError{
				HolderID:  t.SellerID,
				TokenID:   t.TokenID,
				Requested: t.Quantity,
				Available: seller.StakedBalance,
			}
		}

		buyer.EscrowSats -= lockedForQuantity
		buyer.ProceedsSats += refund
		buyer.Balance += t.Quantity
		buyer.TotalPurchased += t.Quantity
		buyer.TotalSpentSats += t.TotalSats
		buyer.UpdatedAt = t.ExecutedAt

		seller.Balance -= t.Quantity
		seller.StakedBalance -= t.Quantity
		seller.ProceedsSats += t.TotalSats
		seller.UpdatedAt = t.ExecutedAt

		if err := updateHolderFunds(ctx, tx, buyer); err != nil {
			return err
		}
		if t.SellerID != t.BuyerID {
			if err := updateHolderFunds(ctx, tx, seller); err != nil {
				return err
			}
		}

		buy.FilledQuantity += t.Quantity
		buy.Status = buy.StatusForFill(buy.FilledQuantity)
		sell.FilledQuantity += t.Quantity
		sell.Status = sell.StatusForFill(sell.FilledQuantity)

		if err := updateOrderFill(ctx, tx, buy); err != nil {
			return err
		}
		if err := updateOrderFill(ctx, tx, sell); err != nil {
			return err
		}

		query := `
			INSERT INTO trades (` + tradeColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err = tx.Exec(ctx, query,
			t.TradeID, t.TokenID, t.BuyOrderID, t.SellOrderID,
			t.BuyerID, t.SellerID, t.Quantity, t.PriceSats, t.TotalSats, t.ExecutedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade: %w", err)
		}
		return nil
	})
}

// PurchaseFromTreasury moves quantity units from treasury to holder
// for costSats. The caller quotes against a treasury level; if the
// treasury no longer matches expectedRemaining the purchase fails with
// ErrConflict so the caller can requote.
func (l *Ledger) PurchaseFromTreasury(ctx context.Context, tokenID, holderID string, quantity, expectedRemaining, costSats int64) error {
	if quantity < 1 || costSats < 1 {
		return storage.ErrInvalidInput
	}

	return l.withTx(ctx, "purchase_from_treasury", func(tx pgx.Tx) error {
		query := `SELECT treasury_balance FROM tokens WHERE token_id = $1 FOR UPDATE`
		var treasury int64
		if err := tx.QueryRow(ctx, query, tokenID).Scan(&treasury); err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("lock token: %w", err)
		}
		if treasury != expectedRemaining {
			return storage.ErrConflict
		}
		if treasury < quantity {
			return storage.ErrConflict
		}

		h, err := lockHolder(ctx, tx, holderID, tokenID)
		if err != nil {
			return err
		}
		if h.ProceedsSats < costSats {
			return &market.InsufficientBalanceError{
				HolderID:  holderID,
				TokenID:   tokenID,
				Requested: costSats,
				Available: h.ProceedsSats,
			}
		}

		_, err = tx.Exec(ctx, `UPDATE tokens SET treasury_balance = treasury_balance - $2 WHERE token_id = $1`, tokenID, quantity)
		if err != nil {
			return fmt.Errorf("debit treasury: %w", err)
		}

		h.ProceedsSats -= costSats
		h.Balance += quantity
		h.TotalPurchased += quantity
		h.TotalSpentSats += costSats
		return updateHolderFunds(ctx, tx, h)
	})
}

// SnapshotBalances returns all holder positions with balance > 0 for a
// token, ordered by holder_id ASC. Runs in a repeatable-read
// transaction so the snapshot is a single consistent point in time.
func (l *Ledger) SnapshotBalances(ctx context.Context, tokenID string) ([]*domain.Holder, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT ` + holderColumns + `
		FROM holders
		WHERE token_id = $1 AND balance > 0
		ORDER BY holder_id ASC
	`
	rows, err := tx.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("snapshot balances: %w", err)
	}
	defer rows.Close()

	holders, err := scanHolders(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return holders, nil
}

// RecordDistribution inserts one distribution and its claims,
// all-or-nothing. Returns ErrDuplicateKey if the distribution or any
// claim already exists.
func (l *Ledger) RecordDistribution(ctx context.Context, d *domain.DividendDistribution, claims []*domain.DividendClaim) error {
	if d == nil || d.DistributionID == "" {
		return storage.ErrInvalidInput
	}

	return l.withTx(ctx, "record_distribution", func(tx pgx.Tx) error {
		query := `
			INSERT INTO dividend_distributions (` + distributionColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := tx.Exec(ctx, query,
			d.DistributionID, d.TokenID, d.TotalAmountSats, d.PerUnitSats,
			d.CirculatingSupplySnapshot, d.DustSats, d.Source, d.Currency, d.DistributedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert distribution: %w", err)
		}

		for _, c := range claims {
			if c == nil || c.ClaimID == "" {
				return storage.ErrInvalidInput
			}
			claimQuery := `
				INSERT INTO dividend_claims (` + claimColumns + `)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`
			_, err := tx.Exec(ctx, claimQuery,
				c.ClaimID, c.DistributionID, c.HolderID, c.Handle,
				c.BalanceSnapshot, c.ClaimAmountSats, string(c.Status), c.PaymentTxID, c.ClaimedAt,
			)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert claim: %w", err)
			}
		}
		return nil
	})
}

// MarkClaimPaid flips one pending claim to claimed. Returns
// ErrConflict if the claim is already claimed.
func (l *Ledger) MarkClaimPaid(ctx context.Context, claimID, paymentTxID string, claimedAt int64) error {
	return l.withTx(ctx, "mark_claim_paid", func(tx pgx.Tx) error {
		query := `
			UPDATE dividend_claims
			SET status = 'claimed', payment_tx_id = $2, claimed_at = $3
			WHERE claim_id = $1 AND status = 'pending'
		`
		tag, err := tx.Exec(ctx, query, claimID, paymentTxID, claimedAt)
		if err != nil {
			return fmt.Errorf("mark claim paid: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dividend_claims WHERE claim_id = $1)`, claimID).Scan(&exists); err != nil {
			return fmt.Errorf("check claim: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	})
}

// WithTokenLock runs fn while holding a session advisory lock derived
// from the token ID. Serializes matching for one token across all
// processes sharing the database.
func (l *Ledger) WithTokenLock(ctx context.Context, tokenID string, fn func(ctx context.Context) error) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn for token lock: %w", err)
	}
	defer conn.Release()

	key := tokenLockKey(tokenID)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		return fmt.Errorf("acquire token lock: %w", err)
	}
	defer conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, key)

	return fn(ctx)
}

// tokenLockKey maps a token ID onto the bigint advisory-lock keyspace.
func tokenLockKey(tokenID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(tokenID))
	return int64(h.Sum64())
}
