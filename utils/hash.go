package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash fingerprints file bytes for the indexing idempotency gate.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
