package textutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a deterministic 128-bit hex digest of the exact bytes
// of text. It addresses cached audio assets and is not a security boundary;
// callers own any whitespace trimming before hashing.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
