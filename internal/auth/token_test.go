package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRawSecret(t *testing.T) {
	v := NewVerifier("top-secret")

	assert.NoError(t, v.Verify("top-secret"))
	assert.ErrorIs(t, v.Verify(""), ErrMissingToken)
	assert.ErrorIs(t, v.Verify("top-secreT"), ErrInvalidToken)
}

func TestMintAndVerify(t *testing.T) {
	v := NewVerifier("top-secret")

	token, err := v.Mint("ops", time.Hour)
	require.NoError(t, err)
	assert.NoError(t, v.Verify(token))

	other := NewVerifier("another-secret")
	assert.ErrorIs(t, other.Verify(token), ErrInvalidSignature)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("top-secret")
	v.now = func() time.Time { return time.Unix(1_000_000, 0) }

	token, err := v.Mint("ops", time.Minute)
	require.NoError(t, err)

	v.now = func() time.Time { return time.Unix(1_000_000, 0).Add(time.Hour) }
	assert.ErrorIs(t, v.Verify(token), ErrExpiredToken)
}

func TestVerifyRequiresAdminRole(t *testing.T) {
	v := NewVerifier("top-secret")

	claims := &adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "player",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("top-secret"))
	require.NoError(t, err)

	assert.ErrorIs(t, v.Verify(token), ErrForbiddenRole)
}

func TestVerifyRejectsOtherHMACMethods(t *testing.T) {
	v := NewVerifier("top-secret")

	claims := &adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("top-secret"))
	require.NoError(t, err)

	assert.ErrorIs(t, v.Verify(token), ErrInvalidSignature)
}

func TestVerifierWithoutSecret(t *testing.T) {
	v := NewVerifier("")
	assert.False(t, v.Enabled())
	assert.ErrorIs(t, v.Verify("anything"), ErrNoSecret)

	_, err := v.Mint("ops", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}
