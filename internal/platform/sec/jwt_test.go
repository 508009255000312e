// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package sec_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medorahealth/medora/internal/platform/sec"
)

const testSecret = "unit-test-signing-secret"

func newSigner(t *testing.T) *sec.TokenSigner {
	t.Helper()
	signer, err := sec.NewTokenSigner(testSecret, "medora.health")
	require.NoError(t, err)
	return signer
}

/*
TestTokenSigner_RoundTrip checks that a signed credential verifies and carries
its claims back, with the email normalized to lower case at signing time.
*/
func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := newSigner(t)

	signed, err := signer.Sign(sec.Claims{
		AccountID: 42,
		Email:     "Mai.Tran@Example.com",
		TokenID:   7,
	}, time.Hour)
	require.NoError(t, err)

	claims, err := signer.Verify(signed)
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.AccountID)
	assert.Equal(t, "mai.tran@example.com", claims.Email)
	assert.Equal(t, int64(7), claims.TokenID)
	assert.Equal(t, "medora.health", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

/*
TestTokenSigner_Rejects exercises the fail-closed paths: tampering, the wrong
secret, an expired embedded window, algorithm confusion, and garbage input.
Every failure collapses into [sec.ErrInvalidToken].
*/
func TestTokenSigner_Rejects(t *testing.T) {
	signer := newSigner(t)

	valid, err := signer.Sign(sec.Claims{AccountID: 1, Email: "a@b.c", TokenID: 1}, time.Hour)
	require.NoError(t, err)

	t.Run("tampered_payload", func(t *testing.T) {
		parts := strings.Split(valid, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + ".eyJhY2NvdW50X2lkIjo5OTl9." + parts[2]

		_, err := signer.Verify(tampered)
		assert.ErrorIs(t, err, sec.ErrInvalidToken)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		other, err := sec.NewTokenSigner("a-completely-different-secret", "medora.health")
		require.NoError(t, err)

		_, err = other.Verify(valid)
		assert.ErrorIs(t, err, sec.ErrInvalidToken)
	})

	t.Run("expired_window", func(t *testing.T) {
		expired, err := signer.Sign(sec.Claims{AccountID: 1}, -time.Minute)
		require.NoError(t, err)

		_, err = signer.Verify(expired)
		assert.ErrorIs(t, err, sec.ErrInvalidToken)
	})

	t.Run("algorithm_none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, sec.Claims{AccountID: 1})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = signer.Verify(raw)
		assert.ErrorIs(t, err, sec.ErrInvalidToken)
	})

	t.Run("garbage_input", func(t *testing.T) {
		_, err := signer.Verify("not.a.token")
		assert.ErrorIs(t, err, sec.ErrInvalidToken)
	})
}

/*
TestNewTokenSigner_EmptySecret checks that the constructor refuses a blank
shared secret.
*/
func TestNewTokenSigner_EmptySecret(t *testing.T) {
	_, err := sec.NewTokenSigner("   ", "medora.health")
	assert.Error(t, err)
}
