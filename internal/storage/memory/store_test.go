package memory

import (
	"context"
	"errors"
	"testing"

	"token-market/internal/domain"
	"token-market/internal/storage"
)

func TestTokenStore_InsertAndGet(t *testing.T) {
	s := NewStore()
	store := NewTokenStore(s)
	ctx := context.Background()

	tok := &domain.Token{
		TokenID:         "tok-1",
		Symbol:          "$GRID",
		PricingModel:    domain.ModelSqrtDecay,
		BasePriceSats:   1000,
		TotalSupply:     1_000_000,
		TreasuryBalance: 1_000_000,
		CreatedAt:       1,
	}
	if err := store.Insert(ctx, tok); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Symbol != "$GRID" {
		t.Errorf("symbol = %s, want $GRID", got.Symbol)
	}

	// Mutating the returned copy must not affect the store.
	got.TreasuryBalance = 0
	again, _ := store.GetByID(ctx, "tok-1")
	if again.TreasuryBalance != 1_000_000 {
		t.Error("store contents mutated through returned copy")
	}

	bySym, err := store.GetBySymbol(ctx, "$GRID")
	if err != nil || bySym.TokenID != "tok-1" {
		t.Errorf("GetBySymbol = %v, %v", bySym, err)
	}
}

func TestTokenStore_DuplicateIDAndSymbol(t *testing.T) {
	s := NewStore()
	store := NewTokenStore(s)
	ctx := context.Background()

	base := domain.Token{
		TokenID: "tok-1", Symbol: "$GRID",
		PricingModel: domain.ModelLinear, BasePriceSats: 10,
		TotalSupply: 100, TreasuryBalance: 100,
	}
	if err := store.Insert(ctx, &base); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	dupID := base
	dupID.Symbol = "$OTHER"
	if err := store.Insert(ctx, &dupID); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("duplicate token_id: got %v, want ErrDuplicateKey", err)
	}

	dupSym := base
	dupSym.TokenID = "tok-2"
	if err := store.Insert(ctx, &dupSym); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("duplicate symbol: got %v, want ErrDuplicateKey", err)
	}
}

func TestTokenStore_InvalidInput(t *testing.T) {
	s := NewStore()
	store := NewTokenStore(s)
	ctx := context.Background()

	bad := []*domain.Token{
		nil,
		{TokenID: "", Symbol: "$A", TotalSupply: 10},
		{TokenID: "t", Symbol: "", TotalSupply: 10},
		{TokenID: "t", Symbol: "$A", TotalSupply: 0},
		{TokenID: "t", Symbol: "$A", TotalSupply: 10, TreasuryBalance: 11},
	}
	for i, tok := range bad {
		if err := store.Insert(ctx, tok); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("case %d: got %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestTokenStore_ListSortedBySymbol(t *testing.T) {
	s := NewStore()
	store := NewTokenStore(s)
	ctx := context.Background()

	for _, tok := range []*domain.Token{
		{TokenID: "t-2", Symbol: "$ZEBRA", TotalSupply: 10, TreasuryBalance: 10},
		{TokenID: "t-1", Symbol: "$ALPHA", TotalSupply: 10, TreasuryBalance: 10},
	} {
		if err := store.Insert(ctx, tok); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Symbol != "$ALPHA" || list[1].Symbol != "$ZEBRA" {
		t.Errorf("unexpected list order: %v", list)
	}
}

func TestHolderStore_UpsertGetAndValidation(t *testing.T) {
	s := NewStore()
	store := NewHolderStore(s)
	ctx := context.Background()

	h := &domain.Holder{HolderID: "alice", TokenID: "tok-1", Handle: "$alice", Balance: 100}
	if err := store.Upsert(ctx, h); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "alice", "tok-1")
	if err != nil || got.Balance != 100 {
		t.Fatalf("Get = %v, %v", got, err)
	}

	// Upsert replaces.
	h.Balance = 250
	if err := store.Upsert(ctx, h); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, _ = store.Get(ctx, "alice", "tok-1")
	if got.Balance != 250 {
		t.Errorf("balance = %d, want 250", got.Balance)
	}

	// Staked cannot exceed balance.
	err = store.Upsert(ctx, &domain.Holder{HolderID: "bob", TokenID: "tok-1", Balance: 10, StakedBalance: 11})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("staked > balance: got %v, want ErrInvalidInput", err)
	}

	if _, err := store.Get(ctx, "nobody", "tok-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing holder: got %v, want ErrNotFound", err)
	}
}

func TestHolderStore_GetByTokenScopedAndSorted(t *testing.T) {
	s := NewStore()
	store := NewHolderStore(s)
	ctx := context.Background()

	seed := []*domain.Holder{
		{HolderID: "carol", TokenID: "tok-1", Balance: 1},
		{HolderID: "alice", TokenID: "tok-1", Balance: 2},
		{HolderID: "alice", TokenID: "tok-2", Balance: 3},
	}
	for _, h := range seed {
		if err := store.Upsert(ctx, h); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.GetByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if len(got) != 2 || got[0].HolderID != "alice" || got[1].HolderID != "carol" {
		t.Errorf("unexpected result: %v", got)
	}
}

func TestOrderStore_GetOpenByTokenOrdering(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	seed := []*domain.Order{
		{OrderID: "o-3", TokenID: "tok-1", HolderID: "a", Side: domain.SideBuy, LimitPriceSats: 1, Quantity: 1, Status: domain.OrderOpen, CreatedAt: 30},
		{OrderID: "o-1", TokenID: "tok-1", HolderID: "a", Side: domain.SideBuy, LimitPriceSats: 1, Quantity: 1, Status: domain.OrderOpen, CreatedAt: 10},
		{OrderID: "o-2", TokenID: "tok-1", HolderID: "a", Side: domain.SideSell, LimitPriceSats: 1, Quantity: 1, Status: domain.OrderPartiallyFilled, CreatedAt: 10},
		{OrderID: "o-4", TokenID: "tok-1", HolderID: "a", Side: domain.SideSell, LimitPriceSats: 1, Quantity: 1, Status: domain.OrderCancelled, CreatedAt: 5},
		{OrderID: "o-5", TokenID: "tok-2", HolderID: "a", Side: domain.SideSell, LimitPriceSats: 1, Quantity: 1, Status: domain.OrderOpen, CreatedAt: 1},
	}
	for _, o := range seed {
		s.orders[o.OrderID] = o
	}

	got, err := NewOrderStore(s).GetOpenByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetOpenByToken failed: %v", err)
	}

	want := []string{"o-1", "o-2", "o-3"}
	if len(got) != len(want) {
		t.Fatalf("got %d orders, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].OrderID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].OrderID, id)
		}
	}
}

func TestTradeStore_GetByTokenRecentFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	seed := []*domain.Trade{
		{TradeID: "t-1", TokenID: "tok-1", Quantity: 1, PriceSats: 1, TotalSats: 1, ExecutedAt: 10},
		{TradeID: "t-2", TokenID: "tok-1", Quantity: 1, PriceSats: 1, TotalSats: 1, ExecutedAt: 30},
		{TradeID: "t-3", TokenID: "tok-1", Quantity: 1, PriceSats: 1, TotalSats: 1, ExecutedAt: 20},
		{TradeID: "t-4", TokenID: "tok-2", Quantity: 1, PriceSats: 1, TotalSats: 1, ExecutedAt: 40},
	}
	for _, tr := range seed {
		s.trades[tr.TradeID] = tr
	}

	got, err := NewTradeStore(s).GetByToken(ctx, "tok-1", 2)
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if len(got) != 2 || got[0].TradeID != "t-2" || got[1].TradeID != "t-3" {
		t.Errorf("unexpected trades: %v", got)
	}
}

func TestDistributionStore_PendingClaimsOldestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	s.distributions["d-new"] = &domain.DividendDistribution{DistributionID: "d-new", TokenID: "tok-1", DistributedAt: 200}
	s.distributions["d-old"] = &domain.DividendDistribution{DistributionID: "d-old", TokenID: "tok-1", DistributedAt: 100}
	s.claims["c-1"] = &domain.DividendClaim{ClaimID: "c-1", DistributionID: "d-new", HolderID: "a", Status: domain.ClaimPending}
	s.claims["c-2"] = &domain.DividendClaim{ClaimID: "c-2", DistributionID: "d-old", HolderID: "b", Status: domain.ClaimPending}
	s.claims["c-3"] = &domain.DividendClaim{ClaimID: "c-3", DistributionID: "d-old", HolderID: "c", Status: domain.ClaimClaimed}

	got, err := NewDistributionStore(s).GetPendingClaims(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingClaims failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("pending = %d, want 2 (claimed excluded)", len(got))
	}
	if got[0].ClaimID != "c-2" || got[1].ClaimID != "c-1" {
		t.Errorf("order = %s,%s, want c-2,c-1", got[0].ClaimID, got[1].ClaimID)
	}

	one, err := NewDistributionStore(s).GetPendingClaims(ctx, 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("limit 1: got %v, %v", one, err)
	}
}

func TestDistributionStore_GetClaimsSorted(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	s.distributions["d-1"] = &domain.DividendDistribution{DistributionID: "d-1", TokenID: "tok-1"}
	s.claims["c-1"] = &domain.DividendClaim{ClaimID: "c-1", DistributionID: "d-1", HolderID: "zoe", Status: domain.ClaimPending}
	s.claims["c-2"] = &domain.DividendClaim{ClaimID: "c-2", DistributionID: "d-1", HolderID: "amy", Status: domain.ClaimPending}

	got, err := NewDistributionStore(s).GetClaims(ctx, "d-1")
	if err != nil {
		t.Fatalf("GetClaims failed: %v", err)
	}
	if len(got) != 2 || got[0].HolderID != "amy" || got[1].HolderID != "zoe" {
		t.Errorf("unexpected claims: %v", got)
	}

	if _, err := NewDistributionStore(s).GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing distribution: got %v, want ErrNotFound", err)
	}
}
