// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

// Package sec provides cryptographic primitives for the identity core:
// bearer-credential signing, password hashing, and one-time-passcode
// generation.
//
// # Architecture
//
// This package isolates security-sensitive code from the domain logic. It is
// pure computation — no I/O, no storage — and is injected into the
// Application layer via small interfaces defined by its consumers.
package sec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload embedded inside a signed bearer credential.
//
// # Two-layer expiry
//
// The registered ExpiresAt claim is one of two independent validity windows:
// the token row in the store carries its own expiry_date. Verification of the
// signed string enforces this layer; the lifecycle engine enforces the other.
// Whichever is stricter wins.
type Claims struct {
	jwt.RegisteredClaims

	// AccountID identifies the owning account.
	AccountID int64 `json:"account_id,omitempty"`

	// Email is the account email, normalized to lower case before signing.
	Email string `json:"email,omitempty"`

	// TokenID is the identifier of the backing token-store row. It is absent
	// on the provisional first-phase signature minted before the row exists.
	TokenID int64 `json:"token_id,omitempty"`
}

// ErrInvalidToken is returned for any verification failure: bad signature,
// malformed payload, wrong algorithm, or embedded expiry in the past.
// Callers get no finer detail — verification fails closed.
var ErrInvalidToken = errors.New("sec: invalid token")

// TokenSigner mints and verifies HS256-signed bearer credentials using a
// process-wide shared secret loaded once at startup.
type TokenSigner struct {
	secret []byte
	issuer string
}

// NewTokenSigner creates a [TokenSigner] from the shared secret.
func NewTokenSigner(secret, issuer string) (*TokenSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("sec: signing secret must not be empty")
	}
	return &TokenSigner{secret: []byte(secret), issuer: issuer}, nil
}

// Sign produces a signed bearer string carrying claims, valid for timeToLive.
// The email claim is normalized to lower case so downstream comparisons are
// case-insensitive by construction.
func (signer *TokenSigner) Sign(claims Claims, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()

	claims.Email = strings.ToLower(claims.Email)
	claims.Issuer = signer.issuer
	claims.IssuedAt = jwt.NewNumericDate(currentTime)
	claims.ExpiresAt = jwt.NewNumericDate(currentTime.Add(timeToLive))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(signer.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature and embedded validity of a bearer string.
//
// Any failure — tampering, algorithm confusion, malformed payload, expired
// embedded window — collapses into [ErrInvalidToken]; the concrete cause is
// wrapped for server-side logs only.
func (signer *TokenSigner) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return signer.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
