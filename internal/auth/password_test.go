package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPasswordUniqueSalts(t *testing.T) {
	first, err := HashPassword("Abcdef12")
	require.NoError(t, err)
	second, err := HashPassword("Abcdef12")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, VerifyPassword("Abcdef12", first))
	require.True(t, VerifyPassword("Abcdef12", second))
}

func TestVerifyPasswordWrong(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	require.False(t, VerifyPassword("wrong horse", hash))
}

func TestVerifyPasswordMissingHash(t *testing.T) {
	// The dummy-hash path: no stored hash still burns a full comparison and
	// always answers false.
	require.False(t, VerifyPassword("anything", ""))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	require.False(t, VerifyPassword("anything", "not-a-bcrypt-hash"))
}
