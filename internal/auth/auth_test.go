package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) *Keys {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys, err := NewKeys(privateKey, &privateKey.PublicKey)
	require.NoError(t, err)
	return keys
}

func TestGenerateAndValidateToken(t *testing.T) {
	keys := testKeys(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{RoleUser},
	}

	token, err := keys.GenerateToken(claims)
	require.NoError(t, err)

	parsed, err := keys.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.Subject)
	assert.True(t, parsed.HasRole(RoleUser))
	assert.False(t, parsed.HasRole(RoleAdmin))
}

func TestValidateToken_Expired(t *testing.T) {
	keys := testKeys(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Roles: []string{RoleUser},
	}

	token, err := keys.GenerateToken(claims)
	require.NoError(t, err)

	_, err = keys.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_WrongKey(t *testing.T) {
	signer := testKeys(t)
	verifier := testKeys(t)

	token, err := signer.GenerateToken(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestGenerateToken_NoPrivateKey(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys, err := NewKeys(nil, &privateKey.PublicKey)
	require.NoError(t, err)

	_, err = keys.GenerateToken(Claims{})
	assert.Error(t, err)
}
