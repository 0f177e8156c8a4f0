package payout

import (
	"context"
	"strings"
	"testing"

	"token-market/internal/domain"
	"token-market/internal/idhash"
	"token-market/internal/payment/stub"
	"token-market/internal/storage/memory"
)

func seedDistribution(t *testing.T, store *memory.Store, distributionID string, claims []*domain.DividendClaim) {
	t.Helper()
	ctx := context.Background()
	dist := &domain.DividendDistribution{
		DistributionID:            distributionID,
		TokenID:                   "tok-1",
		TotalAmountSats:           10_000,
		PerUnitSats:               10,
		CirculatingSupplySnapshot: 1_000,
		Source:                    "content_sale",
		Currency:                  "BSV",
		DistributedAt:             1_000,
	}
	if err := memory.NewLedger(store).RecordDistribution(ctx, dist, claims); err != nil {
		t.Fatalf("RecordDistribution failed: %v", err)
	}
}

func claim(distributionID, holderID, handle string, amount int64) *domain.DividendClaim {
	return &domain.DividendClaim{
		ClaimID:         idhash.ComputeClaimID(distributionID, holderID),
		DistributionID:  distributionID,
		HolderID:        holderID,
		Handle:          handle,
		BalanceSnapshot: amount / 10,
		ClaimAmountSats: amount,
		Status:          domain.ClaimPending,
	}
}

func setup(t *testing.T) (*memory.Store, *stub.Executor, *Runner) {
	t.Helper()
	store := memory.NewStore()
	executor := stub.NewExecutor()
	r := NewRunner(Options{
		Distributions: memory.NewDistributionStore(store),
		Ledger:        memory.NewLedger(store),
		Executor:      executor,
		Now:           func() int64 { return 5_000 },
	})
	return store, executor, r
}

func TestRun_PaysAllPending(t *testing.T) {
	store, executor, r := setup(t)
	ctx := context.Background()

	seedDistribution(t, store, "dist-1", []*domain.DividendClaim{
		claim("dist-1", "alice", "$alice", 4_000),
		claim("dist-1", "bob", "$bob", 6_000),
	})

	result, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ClaimsPaid != 2 || result.SatsPaid != 10_000 {
		t.Errorf("result = %+v, want 2 claims / 10000 sats", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v, want none", result.Errors)
	}

	payments := executor.Payments()
	if len(payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(payments))
	}
	if payments[0].Memo != "dividend dist-1" {
		t.Errorf("memo = %q", payments[0].Memo)
	}

	claims, err := memory.NewDistributionStore(store).GetClaims(ctx, "dist-1")
	if err != nil {
		t.Fatalf("GetClaims failed: %v", err)
	}
	for _, c := range claims {
		if c.Status != domain.ClaimClaimed {
			t.Errorf("claim %s status = %s, want claimed", c.HolderID, c.Status)
		}
		if c.PaymentTxID == "" {
			t.Errorf("claim %s has no payment tx", c.HolderID)
		}
		if c.ClaimedAt != 5_000 {
			t.Errorf("claim %s claimed_at = %d, want 5000", c.HolderID, c.ClaimedAt)
		}
	}
}

func TestRun_FailedClaimStaysPending(t *testing.T) {
	store, executor, r := setup(t)
	ctx := context.Background()

	seedDistribution(t, store, "dist-1", []*domain.DividendClaim{
		claim("dist-1", "alice", "$alice", 4_000),
		claim("dist-1", "bob", "$bob", 6_000),
	})
	executor.FailFor["$alice"] = true

	result, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ClaimsPaid != 1 || result.SatsPaid != 6_000 {
		t.Errorf("result = %+v, want 1 claim / 6000 sats", result)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "$alice") {
		t.Errorf("errors = %v, want one for $alice", result.Errors)
	}

	// The failed claim is retried once the rail recovers.
	executor.FailFor["$alice"] = false
	result, err = r.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if result.ClaimsPaid != 1 || result.SatsPaid != 4_000 {
		t.Errorf("retry result = %+v, want 1 claim / 4000 sats", result)
	}
}

func TestRun_Idempotent(t *testing.T) {
	store, executor, r := setup(t)
	ctx := context.Background()

	seedDistribution(t, store, "dist-1", []*domain.DividendClaim{
		claim("dist-1", "alice", "$alice", 4_000),
	})

	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	result, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if result.ClaimsPaid != 0 || len(result.Errors) != 0 {
		t.Errorf("second run = %+v, want nothing to pay", result)
	}
	if len(executor.Payments()) != 1 {
		t.Errorf("payments = %d, want 1", len(executor.Payments()))
	}
}

func TestRun_HonorsBatchSize(t *testing.T) {
	store := memory.NewStore()
	executor := stub.NewExecutor()
	r := NewRunner(Options{
		Distributions: memory.NewDistributionStore(store),
		Ledger:        memory.NewLedger(store),
		Executor:      executor,
		BatchSize:     1,
	})
	ctx := context.Background()

	seedDistribution(t, store, "dist-1", []*domain.DividendClaim{
		claim("dist-1", "alice", "$alice", 4_000),
		claim("dist-1", "bob", "$bob", 6_000),
	})

	result, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ClaimsPaid != 1 {
		t.Errorf("first run paid %d, want 1", result.ClaimsPaid)
	}
	result, err = r.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if result.ClaimsPaid != 1 {
		t.Errorf("second run paid %d, want 1", result.ClaimsPaid)
	}
}

func TestRun_MissingHandleReported(t *testing.T) {
	store, executor, r := setup(t)
	ctx := context.Background()

	seedDistribution(t, store, "dist-1", []*domain.DividendClaim{
		claim("dist-1", "ghost", "", 4_000),
	})

	result, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ClaimsPaid != 0 || len(result.Errors) != 1 {
		t.Errorf("result = %+v, want one error", result)
	}
	if len(executor.Payments()) != 0 {
		t.Error("no payment should have been attempted")
	}
}
