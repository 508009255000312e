// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package auth

import "time"

// # Authentication Constraints

const (
	// AccessTokenTTL is the duration an access credential remains valid.
	// Both the signed claims and the stored record expire at the same instant.
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the duration a refresh credential remains valid.
	// Long-lived (30 days) to provide a good user experience.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// OTPTTL is the duration a one-time passcode remains redeemable.
	// Short-lived (10 minutes) for security.
	OTPTTL = 10 * time.Minute

	// OTPResendCooldown is the minimum interval between passcode deliveries
	// to the same address.
	OTPResendCooldown = 60 * time.Second

	// PasswordMinLen is the minimum accepted password length.
	PasswordMinLen = 8

	// PasswordMaxLen caps password length; bcrypt ignores input past 72 bytes.
	PasswordMaxLen = 72
)
