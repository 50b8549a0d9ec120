package warc

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the SHA-256 of normalized HTML, hex-encoded, used
// for same-day deduplication and change detection across captures.
func ContentHash(normalizedHTML string) string {
	sum := sha256.Sum256([]byte(normalizedHTML))
	return hex.EncodeToString(sum[:])
}
