package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensIssueVerifyRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, 5*time.Minute)

	signed, expiresIn, err := tokens.Issue("cli")
	require.NoError(t, err)
	assert.Equal(t, 3600, expiresIn)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.ClientID)
	assert.True(t, claims.ExpireAt.After(claims.IssuedAt))
}

func TestTokensVerifyExpired(t *testing.T) {
	tokens := NewTokens("secret", -time.Hour, 0)

	signed, _, err := tokens.Issue("cli")
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokensVerifyWithinLeewaySurvives(t *testing.T) {
	tokens := NewTokens("secret", -time.Minute, 5*time.Minute)

	signed, _, err := tokens.Issue("cli")
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.NoError(t, err)
}

func TestTokensVerifyBeyondLeewayExpires(t *testing.T) {
	tokens := NewTokens("secret", -10*time.Minute, 5*time.Minute)

	signed, _, err := tokens.Issue("cli")
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokensVerifyBadSecretInvalid(t *testing.T) {
	issuer := NewTokens("secret", time.Hour, 0)
	verifier := NewTokens("other", time.Hour, 0)

	signed, _, err := issuer.Issue("cli")
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokensVerifyMalformedInvalid(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, 0)

	_, err := tokens.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
