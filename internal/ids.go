package internal

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/google/uuid"
)

// NewTokenID returns a random identifier suitable for refresh-token ids
// (jti claims) and MFA challenge ids.
func NewTokenID() string {
	return uuid.NewString()
}

// HashToken computes the server-side digest under which a presented token
// is tracked. Only the digest is ever stored.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// HashEqual compares two token digests in constant time.
func HashEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
