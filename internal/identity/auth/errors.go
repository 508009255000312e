// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package auth

import (
	"net/http"

	"github.com/medorahealth/medora/internal/platform/apperr"
)

// # Error Taxonomy
//
// Every failure that leaves the service carries one of these stable codes.
// Credential-related members share deliberately generic messages so the API
// never reveals whether an account, passcode, or token exists. The detailed
// cause stays in server-side logs.

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = apperr.New(
		"INVALID_CREDENTIALS", "Invalid login credentials", http.StatusUnauthorized)

	// ErrInvalidOTP covers absent, expired, already-consumed, and mismatched
	// passcodes alike.
	ErrInvalidOTP = apperr.New(
		"INVALID_OTP", "Invalid or expired OTP", http.StatusUnauthorized)

	// ErrInvalidToken covers malformed, tampered, expired, and revoked bearer
	// strings, and replayed password-reset exchange identifiers.
	ErrInvalidToken = apperr.New(
		"INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized)

	// ErrAccountNotFound is returned when an operation names an account that
	// does not exist.
	ErrAccountNotFound = apperr.New(
		"ACCOUNT_NOT_FOUND", "Account not found", http.StatusNotFound)

	// ErrNotifyFailed is returned when the out-of-band passcode delivery
	// reports a definitive failure before the response is produced.
	ErrNotifyFailed = apperr.New(
		"NOTIFY_FAILED", "Failed to send verification email", http.StatusBadGateway)
)
