package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewResetToken(t *testing.T) {
	reset, err := NewResetToken()
	assert.NoError(t, err)

	// 20 random bytes rendered as hex.
	assert.Len(t, reset.Secret, 40)
	assert.Len(t, reset.Digest, 64)
	assert.Equal(t, ResetTokenDigest(reset.Secret), reset.Digest)
	assert.WithinDuration(t, time.Now().Add(ResetTokenLifetime), reset.ExpiresAt, time.Second)
}

func TestNewResetToken_SecretsAreUnique(t *testing.T) {
	first, err := NewResetToken()
	assert.NoError(t, err)
	second, err := NewResetToken()
	assert.NoError(t, err)

	assert.NotEqual(t, first.Secret, second.Secret)
	assert.NotEqual(t, first.Digest, second.Digest)
}

func TestResetTokenDigest_Deterministic(t *testing.T) {
	assert.Equal(t, ResetTokenDigest("abc"), ResetTokenDigest("abc"))
	assert.NotEqual(t, ResetTokenDigest("abc"), ResetTokenDigest("abd"))
}
