// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package sec

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPDigits is the fixed length of generated one-time passcodes.
const OTPDigits = 4

// otpSpan covers the 4-digit range 1000–9999 so codes never carry a leading
// zero (they are compared as strings end to end).
var otpSpan = big.NewInt(9000)

// GenerateOTP produces a fixed-length numeric one-time passcode from the
// platform's cryptographic random source.
//
// Codes are deliberately short: they are only ever matched together with the
// owning account and an unexpired validity window, never on their own, so
// collisions across accounts are acceptable.
func GenerateOTP() (string, error) {
	offset, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%d", offset.Int64()+1000), nil
}
