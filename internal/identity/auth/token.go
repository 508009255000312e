// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package auth

import "time"

// # Token Records

// TokenType classifies a token record. The set is closed and each variant
// carries its own validity window.
type TokenType string

const (
	// TypeAccess is a short-lived signed bearer credential.
	TypeAccess TokenType = "access"

	// TypeRefresh is a long-lived signed credential used only to mint a
	// replacement pair. A refresh record points back at the access record
	// issued in the same transaction.
	TypeRefresh TokenType = "refresh"

	// TypeOTP is a short numeric passcode delivered out-of-band. Single-use:
	// successful verification revokes the record and, afterwards, its
	// identifier doubles as the password-reset exchange key.
	TypeOTP TokenType = "otp"
)

// Valid reports whether the type belongs to the closed set.
func (t TokenType) Valid() bool {
	switch t {
	case TypeAccess, TypeRefresh, TypeOTP:
		return true
	}
	return false
}

// TTL returns the validity window for newly created records of this type.
func (t TokenType) TTL() time.Duration {
	switch t {
	case TypeAccess:
		return AccessTokenTTL
	case TypeRefresh:
		return RefreshTokenTTL
	case TypeOTP:
		return OTPTTL
	}
	return 0
}

// Token is the central record of the session lifecycle. Rows are created only
// at issuance, mutated only to re-sign token_data or to flip is_deleted, and
// never physically removed.
type Token struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	TokenType TokenType `json:"token_type"`
	// TokenData holds the signed bearer string for access/refresh records,
	// the numeric code for otp records. Never exposed over the API.
	TokenData  string    `json:"-"`
	ExpiryDate time.Time `json:"expiry_date"`
	// RelatedTokenID links a refresh record to its sibling access record.
	// Pairing only, used for lookup and revocation fan-out, never consulted
	// for authority decisions.
	RelatedTokenID *int64    `json:"related_token_id,omitempty"`
	IsDeleted      bool      `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the record can still authenticate at the given
// instant. Revoked and expired records are indistinguishable to callers.
func (token *Token) Active(now time.Time) bool {
	return !token.IsDeleted && !now.After(token.ExpiryDate)
}
