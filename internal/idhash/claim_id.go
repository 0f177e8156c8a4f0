package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeClaimID computes a deterministic claim_id using SHA256.
// Formula: SHA256(distribution_id|holder_id)
// Returns hex-encoded hash (64 characters).
//
// One holder can hold at most one claim per distribution, so the claim
// ID is derived rather than generated.
func ComputeClaimID(distributionID, holderID string) string {
	data := fmt.Sprintf("%s|%s", distributionID, holderID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
