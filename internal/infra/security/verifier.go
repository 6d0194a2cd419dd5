package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken derives the public verifier from a raw session token. The raw
// token is the host's secret; only the verifier is ever stored or exposed.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
