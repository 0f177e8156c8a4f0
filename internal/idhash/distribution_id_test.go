package idhash

import "testing"

func TestComputeDistributionID(t *testing.T) {
	got := ComputeDistributionID("token-1", "content_sale", "rev-2026-08-001")

	if len(got) != 64 {
		t.Errorf("ComputeDistributionID() length = %d, want 64", len(got))
	}

	// Verify determinism: same inputs should produce same output
	again := ComputeDistributionID("token-1", "content_sale", "rev-2026-08-001")
	if got != again {
		t.Errorf("ComputeDistributionID() not deterministic: %s != %s", got, again)
	}

	// Different idempotency key should produce different ID
	other := ComputeDistributionID("token-1", "content_sale", "rev-2026-08-002")
	if got == other {
		t.Error("ComputeDistributionID() collision across idempotency keys")
	}

	// Different token should produce different ID
	otherToken := ComputeDistributionID("token-2", "content_sale", "rev-2026-08-001")
	if got == otherToken {
		t.Error("ComputeDistributionID() collision across tokens")
	}
}

func TestComputeClaimID(t *testing.T) {
	dist := ComputeDistributionID("token-1", "content_sale", "rev-1")

	got := ComputeClaimID(dist, "holder-a")
	if len(got) != 64 {
		t.Errorf("ComputeClaimID() length = %d, want 64", len(got))
	}

	if got != ComputeClaimID(dist, "holder-a") {
		t.Error("ComputeClaimID() not deterministic")
	}

	if got == ComputeClaimID(dist, "holder-b") {
		t.Error("ComputeClaimID() collision across holders")
	}
}
