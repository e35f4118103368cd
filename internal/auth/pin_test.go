package auth_test

import (
	"testing"

	"keyflow-backend/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePIN(t *testing.T) {
	for _, pin := range []string{"1234", "12345", "123456", "0000"} {
		assert.NoError(t, auth.ValidatePIN(pin), pin)
	}

	for _, pin := range []string{"", "1", "123", "1234567", "12a4", "abcd", "12 4", "12.4"} {
		assert.Error(t, auth.ValidatePIN(pin), "%q should be rejected", pin)
	}
}

func TestHashAndVerifyPIN(t *testing.T) {
	hash, err := auth.HashPIN("4321")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "4321", hash)

	assert.True(t, auth.VerifyPIN(hash, "4321"))
	assert.False(t, auth.VerifyPIN(hash, "1234"))
	assert.False(t, auth.VerifyPIN(hash, ""))
	assert.False(t, auth.VerifyPIN("not-a-hash", "4321"))
}

func TestHashPIN_SaltsEveryHash(t *testing.T) {
	h1, err := auth.HashPIN("4321")
	require.NoError(t, err)
	h2, err := auth.HashPIN("4321")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
