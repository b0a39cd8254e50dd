package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ResetTokenLifetime is how long a reset secret stays valid. The observed
// design treats this as a fixed constant, not configuration.
const ResetTokenLifetime = 10 * time.Minute

const resetSecretBytes = 20

// ResetToken is a freshly issued password-reset secret. Secret is handed to
// the user exactly once; only Digest is ever persisted.
type ResetToken struct {
	Secret    string
	Digest    string
	ExpiresAt time.Time
}

// NewResetToken generates a reset secret from 20 bytes of randomness together
// with its digest and expiry.
func NewResetToken() (*ResetToken, error) {
	buf := make([]byte, resetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	secret := hex.EncodeToString(buf)
	return &ResetToken{
		Secret:    secret,
		Digest:    ResetTokenDigest(secret),
		ExpiresAt: time.Now().Add(ResetTokenLifetime),
	}, nil
}

// ResetTokenDigest computes the sha256 hex digest of a reset secret. The
// digest is deliberately unsalted: the secret itself is the high-entropy
// material, and the digest must be deterministic so it can be matched by
// lookup.
func ResetTokenDigest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
