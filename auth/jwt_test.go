package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAuth(key string) *Auth {
	return &Auth{
		Options: Options{
			Logger: zap.NewNop(),
		},
		jwtKey: []byte(key),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := testAuth("super-secret-signing-key")

	token, err := a.CreateTokenFromClaims(Claims{
		ID:          "42",
		PhoneNumber: "15551234567",
	})
	require.NoError(t, err)

	claims, err := a.verifyToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "42", claims.ID)
	assert.Equal(t, "15551234567", claims.PhoneNumber)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	a := testAuth("super-secret-signing-key")

	refresh, err := a.CreateRefreshTokenFromClaims(Claims{
		ID:          "42",
		PhoneNumber: "15551234567",
	})
	require.NoError(t, err)

	claim, err := a.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, "42", claim.ID)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	a := testAuth("super-secret-signing-key")
	other := testAuth("a-different-signing-key")

	token, err := a.CreateTokenFromClaims(Claims{ID: "42"})
	require.NoError(t, err)
	refresh, err := a.CreateRefreshTokenFromClaims(Claims{ID: "42"})
	require.NoError(t, err)

	claims, err := other.verifyToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims)

	claim, err := other.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Nil(t, claim)
}
