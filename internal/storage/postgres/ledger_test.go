package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-market/internal/domain"
	"token-market/internal/market"
	"token-market/internal/storage"
)

func TestLedger_CreateOrderLocksFunds(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedToken(t, pool, "tok-1", "$GRID")
	seedHolder(t, pool, "alice", "tok-1", 1000, 50_000)
	seedHolder(t, pool, "bob", "tok-1", 0, 100_000)

	ledger := NewLedger(pool)
	holders := NewHolderStore(pool)
	ctx := context.Background()

	// Sell order stakes units.
	err := ledger.CreateOrder(ctx, &domain.Order{
		OrderID: "ask-1", TokenID: "tok-1", HolderID: "alice",
		Side: domain.SideSell, LimitPriceSats: 100, Quantity: 400, CreatedAt: 10,
	})
	require.NoError(t, err)

	alice, err := holders.Get(ctx, "alice", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), alice.StakedBalance)
	assert.Equal(t, int64(600), alice.AvailableBalance())

	// Buy order escrows sats.
	err = ledger.CreateOrder(ctx, &domain.Order{
		OrderID: "bid-1", TokenID: "tok-1", HolderID: "bob",
		Side: domain.SideBuy, LimitPriceSats: 120, Quantity: 5, CreatedAt: 11,
	})
	require.NoError(t, err)

	bob, err := holders.Get(ctx, "bob", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), bob.EscrowSats)
	assert.Equal(t, int64(99_400), bob.ProceedsSats)

	// Overdrawn sell fails without mutating anything.
	err = ledger.CreateOrder(ctx, &domain.Order{
		OrderID: "ask-2", TokenID: "tok-1", HolderID: "alice",
		Side: domain.SideSell, LimitPriceSats: 100, Quantity: 601, CreatedAt: 12,
	})
	assert.ErrorIs(t, err, market.ErrInsufficientBalance)

	after, err := holders.Get(ctx, "alice", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), after.StakedBalance)

	_, err = NewOrderStore(pool).GetByID(ctx, "ask-2")
	assert.ErrorIs(t, err, storage.ErrNotFound, "failed order must not persist")
}

func TestLedger_ApplyTradeSettlesAtMakerPrice(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedToken(t, pool, "tok-1", "$GRID")
	seedHolder(t, pool, "alice", "tok-1", 1000, 0)
	seedHolder(t, pool, "bob", "tok-1", 0, 10_000)

	ledger := NewLedger(pool)
	ctx := context.Background()

	require.NoError(t, ledger.CreateOrder(ctx, &domain.Order{
		OrderID: "ask-1", TokenID: "tok-1", HolderID: "alice",
		Side: domain.SideSell, LimitPriceSats: 100, Quantity: 3, CreatedAt: 1,
	}))
	require.NoError(t, ledger.CreateOrder(ctx, &domain.Order{
		OrderID: "bid-1", TokenID: "tok-1", HolderID: "bob",
		Side: domain.SideBuy, LimitPriceSats: 120, Quantity: 5, CreatedAt: 2,
	}))

	err := ledger.ApplyTrade(ctx, &domain.Trade{
		TradeID: "t-1", TokenID: "tok-1",
		BuyOrderID: "bid-1", SellOrderID: "ask-1",
		BuyerID: "bob", SellerID: "alice",
		Quantity: 3, PriceSats: 100, TotalSats: 300, ExecutedAt: 3,
	})
	require.NoError(t, err)

	holders := NewHolderStore(pool)
	alice, err := holders.Get(ctx, "alice", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(997), alice.Balance)
	assert.Equal(t, int64(0), alice.StakedBalance)
	assert.Equal(t, int64(300), alice.ProceedsSats)

	bob, err := holders.Get(ctx, "bob", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), bob.Balance)
	// Escrowed 600 at the 120 limit; 3 units consumed 360 of escrow,
	// 300 paid out, 60 refunded.
	assert.Equal(t, int64(240), bob.EscrowSats)
	assert.Equal(t, int64(10_000-600+60), bob.ProceedsSats)

	orders := NewOrderStore(pool)
	ask, err := orders.GetByID(ctx, "ask-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, ask.Status)

	bid, err := orders.GetByID(ctx, "bid-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPartiallyFilled, bid.Status)
	assert.Equal(t, int64(3), bid.FilledQuantity)

	trades, err := NewTradeStore(pool).GetByToken(ctx, "tok-1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(100), trades[0].PriceSats)

	// Replaying the same trade ID is rejected.
	err = ledger.ApplyTrade(ctx, &domain.Trade{
		TradeID: "t-1", TokenID: "tok-1",
		BuyOrderID: "bid-1", SellOrderID: "ask-1",
		BuyerID: "bob", SellerID: "alice",
		Quantity: 1, PriceSats: 100, TotalSats: 100, ExecutedAt: 4,
	})
	assert.Error(t, err)
}

func TestLedger_CancelOrderReleasesEscrow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedToken(t, pool, "tok-1", "$GRID")
	seedHolder(t, pool, "bob", "tok-1", 0, 100_000)

	ledger := NewLedger(pool)
	ctx := context.Background()

	require.NoError(t, ledger.CreateOrder(ctx, &domain.Order{
		OrderID: "bid-1", TokenID: "tok-1", HolderID: "bob",
		Side: domain.SideBuy, LimitPriceSats: 100, Quantity: 10, CreatedAt: 1,
	}))

	cancelled, err := ledger.CancelOrder(ctx, "bid-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)

	bob, err := NewHolderStore(pool).Get(ctx, "bob", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bob.EscrowSats)
	assert.Equal(t, int64(100_000), bob.ProceedsSats)

	_, err = ledger.CancelOrder(ctx, "bid-1")
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestLedger_PurchaseFromTreasury(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedToken(t, pool, "tok-1", "$GRID")
	seedHolder(t, pool, "bob", "tok-1", 0, 100_000)

	ledger := NewLedger(pool)
	ctx := context.Background()

	err := ledger.PurchaseFromTreasury(ctx, "tok-1", "bob", 100, 900_000, 5_000)
	require.NoError(t, err)

	tok, err := NewTokenStore(pool).GetByID(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(899_900), tok.TreasuryBalance)

	bob, err := NewHolderStore(pool).Get(ctx, "bob", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bob.Balance)
	assert.Equal(t, int64(95_000), bob.ProceedsSats)

	// Stale treasury quote is rejected.
	err = ledger.PurchaseFromTreasury(ctx, "tok-1", "bob", 100, 900_000, 5_000)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestLedger_RecordDistributionIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedToken(t, pool, "tok-1", "$GRID")

	ledger := NewLedger(pool)
	ctx := context.Background()

	d := &domain.DividendDistribution{
		DistributionID: "dist-1", TokenID: "tok-1",
		TotalAmountSats: 10_000, PerUnitSats: 10,
		CirculatingSupplySnapshot: 1000, DustSats: 0,
		Source: "content_sale", Currency: "BSV", DistributedAt: 5,
	}
	claims := []*domain.DividendClaim{
		{ClaimID: "c-1", DistributionID: "dist-1", HolderID: "alice", Handle: "$alice", BalanceSnapshot: 400, ClaimAmountSats: 4000, Status: domain.ClaimPending},
		{ClaimID: "c-2", DistributionID: "dist-1", HolderID: "bob", Handle: "$bob", BalanceSnapshot: 600, ClaimAmountSats: 6000, Status: domain.ClaimPending},
	}

	require.NoError(t, ledger.RecordDistribution(ctx, d, claims))

	err := ledger.RecordDistribution(ctx, d, claims)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := NewDistributionStore(pool).GetClaims(ctx, "dist-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].HolderID)
	assert.Equal(t, "bob", got[1].HolderID)
}

func TestLedger_MarkClaimPaid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedToken(t, pool, "tok-1", "$GRID")

	ledger := NewLedger(pool)
	ctx := context.Background()

	d := &domain.DividendDistribution{DistributionID: "dist-1", TokenID: "tok-1", Currency: "BSV", DistributedAt: 5}
	claims := []*domain.DividendClaim{
		{ClaimID: "c-1", DistributionID: "dist-1", HolderID: "alice", Status: domain.ClaimPending},
	}
	require.NoError(t, ledger.RecordDistribution(ctx, d, claims))

	require.NoError(t, ledger.MarkClaimPaid(ctx, "c-1", "txid-abc", 99))

	got, err := NewDistributionStore(pool).GetClaims(ctx, "dist-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ClaimClaimed, got[0].Status)
	assert.Equal(t, "txid-abc", got[0].PaymentTxID)
	assert.Equal(t, int64(99), got[0].ClaimedAt)

	assert.ErrorIs(t, ledger.MarkClaimPaid(ctx, "c-1", "txid-other", 100), storage.ErrConflict)
	assert.ErrorIs(t, ledger.MarkClaimPaid(ctx, "missing", "txid", 100), storage.ErrNotFound)
}

func TestLedger_SnapshotBalances(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedToken(t, pool, "tok-1", "$GRID")
	seedHolder(t, pool, "carol", "tok-1", 10, 0)
	seedHolder(t, pool, "alice", "tok-1", 20, 0)
	seedHolder(t, pool, "zoe", "tok-1", 0, 500)

	ledger := NewLedger(pool)

	snap, err := ledger.SnapshotBalances(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, snap, 2, "zero balances excluded")
	assert.Equal(t, "alice", snap[0].HolderID)
	assert.Equal(t, "carol", snap[1].HolderID)
}

func TestLedger_CreateOrderCostOverflowRejected(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedToken(t, pool, "tok-1", "$GRID")
	seedHolder(t, pool, "bob", "tok-1", 0, 0)

	ledger := NewLedger(pool)
	holders := NewHolderStore(pool)
	ctx := context.Background()

	// quantity * price wraps negative; the wrapped cost would pass the
	// funding check and credit an empty account.
	err := ledger.CreateOrder(ctx, &domain.Order{
		OrderID: "bid-neg", TokenID: "tok-1", HolderID: "bob",
		Side: domain.SideBuy, LimitPriceSats: (1 << 31) + 1, Quantity: 1 << 32, CreatedAt: 10,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	// quantity * price wraps to exactly zero; an unfunded order would
	// be accepted with no escrow.
	err = ledger.CreateOrder(ctx, &domain.Order{
		OrderID: "bid-zero", TokenID: "tok-1", HolderID: "bob",
		Side: domain.SideBuy, LimitPriceSats: 1 << 40, Quantity: 1 << 40, CreatedAt: 11,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	bob, err := holders.Get(ctx, "bob", "tok-1")
	require.NoError(t, err)
	assert.Zero(t, bob.EscrowSats)
	assert.Zero(t, bob.ProceedsSats)

	for _, id := range []string{"bid-neg", "bid-zero"} {
		_, err = NewOrderStore(pool).GetByID(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound, "order %s must not persist", id)
	}
}
