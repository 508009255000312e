// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medorahealth/medora/internal/identity/auth"
)

/*
TestTokenType_TTL checks that each variant carries its own validity window.
*/
func TestTokenType_TTL(t *testing.T) {
	assert.Equal(t, auth.AccessTokenTTL, auth.TypeAccess.TTL())
	assert.Equal(t, auth.RefreshTokenTTL, auth.TypeRefresh.TTL())
	assert.Equal(t, auth.OTPTTL, auth.TypeOTP.TTL())

	assert.True(t, auth.TypeAccess.Valid())
	assert.True(t, auth.TypeRefresh.Valid())
	assert.True(t, auth.TypeOTP.Valid())
	assert.False(t, auth.TokenType("session").Valid())
	assert.Zero(t, auth.TokenType("session").TTL())
}

/*
TestToken_Active walks the record state machine: active is the only state
that authenticates; expiry and revocation are both terminal.
*/
func TestToken_Active(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		token  auth.Token
		active bool
	}{
		{"live", auth.Token{ExpiryDate: now.Add(time.Hour)}, true},
		{"at_expiry_instant", auth.Token{ExpiryDate: now}, true},
		{"expired", auth.Token{ExpiryDate: now.Add(-time.Second)}, false},
		{"revoked", auth.Token{ExpiryDate: now.Add(time.Hour), IsDeleted: true}, false},
		{"revoked_and_expired", auth.Token{ExpiryDate: now.Add(-time.Second), IsDeleted: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.token.Active(now))
		})
	}
}
