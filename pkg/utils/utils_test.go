package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSealerRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := NewSealer([]byte(testKey))
	require.NoError(t, err)

	type creds struct {
		AccessToken string `json:"access_token"`
	}
	sealed, err := s.SealJSON(creds{AccessToken: "tok-1"})
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "tok-1")

	var got creds
	require.NoError(t, s.OpenJSON(sealed, &got))
	assert.Equal(t, "tok-1", got.AccessToken)

	_, err = s.Open([]byte("abc"))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed)
	assert.Error(t, err)
}

func TestOperatorToken(t *testing.T) {
	t.Parallel()

	token, err := GenerateToken(testKey, "reviewer@ops", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(testKey, token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer@ops", claims.Operator)

	_, err = ValidateToken("another-secret-another-secret-xx", token)
	assert.Error(t, err)

	expired, err := GenerateToken(testKey, "reviewer@ops", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(testKey, expired)
	assert.Error(t, err)
}
