// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

/*
Package auth implements the identity and session-token lifecycle layer.

It defines the core domain entities (Account, Token) and the logic for
credential verification, paired token issuance, one-time passcodes, and
password reset.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to account identity.
*/
package auth

import (
	"time"

	"github.com/medorahealth/medora/internal/platform/sec"
)

// # Domain Entities

// Account represents a registered member of the Medora platform: a patient,
// a doctor, or an administrator.
type Account struct {
	ID           int64           `json:"id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Email        string          `json:"email"`
	PhoneNumber  string          `json:"phone_number,omitempty"`
	PasswordHash string          `json:"-"` // Explicitly omitted from JSON for security.
	DateOfBirth  *time.Time      `json:"dob,omitempty"`
	Role         sec.AccountRole `json:"account_type"`
	// ResetPending is set when a forgot-password flow starts and cleared
	// when the password is successfully changed.
	ResetPending bool      `json:"-"`
	IsDeleted    bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal projects the account into the request-context identity consumed
// by the authorization middleware.
func (account *Account) Principal() *sec.Principal {
	return &sec.Principal{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
	}
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldNewPassword  = "new_password"
	FieldOTP          = "otp"
	FieldTokenID      = "token_id"
	FieldRefreshToken = "refresh_token"
	FieldAccessToken  = "access_token"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldPhoneNumber  = "phone_number"
	FieldAccountType  = "account_type"
	FieldMessage      = "message"
)
