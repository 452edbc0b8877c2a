package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerBasics(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "test.key")
	i := NewTokenIssuer(keyPath)

	tok, err := i.Sign(&jwt.RegisteredClaims{
		Subject: "test",
	})
	require.NoError(t, err)

	// Success
	claims, err := i.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "test", claims.Subject)

	// Malformed token
	_, err = i.Verify("invalid token")
	require.Error(t, err)

	// Expired
	tok, err = i.Sign(&jwt.RegisteredClaims{
		Subject:   "test",
		ExpiresAt: jwt.NewNumericDate(time.Time{}),
	})
	require.NoError(t, err)

	_, err = i.Verify(tok)
	require.Error(t, err)
}

func TestTokenIssuerKeyReuse(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "test.key")
	tok, err := NewTokenIssuer(keyPath).Sign(&jwt.RegisteredClaims{Subject: "persisted"})
	require.NoError(t, err)

	// A second issuer loads the same key from disk
	claims, err := NewTokenIssuer(keyPath).Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "persisted", claims.Subject)

	// Tokens from a different key are rejected
	_, err = NewTokenIssuer(filepath.Join(t.TempDir(), "other.key")).Verify(tok)
	assert.Error(t, err)
}

func TestTokenIssuerAudience(t *testing.T) {
	i := NewTokenIssuer(filepath.Join(t.TempDir(), "test.key"))

	tok, exp, err := i.Issue("visitor", "sessions", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := i.VerifyFor(tok, "sessions")
	require.NoError(t, err)
	assert.Equal(t, "visitor", claims.Subject)

	_, err = i.VerifyFor(tok, "something-else")
	assert.Error(t, err)

	// Tokens without an expiration are only good for Verify
	tok, err = i.Sign(&jwt.RegisteredClaims{Subject: "visitor", Audience: jwt.ClaimStrings{"sessions"}})
	require.NoError(t, err)
	_, err = i.VerifyFor(tok, "sessions")
	assert.Error(t, err)
	_, err = i.Verify(tok)
	assert.NoError(t, err)
}
