package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestCredentialRoundTrip(t *testing.T) {
	hash, err := HashCredential("s3cret-passphrase", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckCredential(hash, "s3cret-passphrase"))
	assert.False(t, CheckCredential(hash, "wrong-passphrase"))
}

func TestHashCredentialCostFallback(t *testing.T) {
	// Cost 0 means BCRYPT_COST was unset; the hash must still verify.
	hash, err := HashCredential("pw", 0)
	require.NoError(t, err)
	assert.True(t, CheckCredential(hash, "pw"))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
