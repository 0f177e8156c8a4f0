package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeDistributionID computes a deterministic distribution_id using SHA256.
// Formula: SHA256(token_id|source|idempotency_key)
// Returns hex-encoded hash (64 characters).
//
// The same revenue event always hashes to the same ID, so a
// double-submitted irrigation collides on the primary key instead of
// paying holders twice.
func ComputeDistributionID(tokenID, source, idempotencyKey string) string {
	data := fmt.Sprintf("%s|%s|%s", tokenID, source, idempotencyKey)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
