// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

/*
Package auth implements the session-token lifecycle engine.

It handles credential verification, paired access/refresh issuance, one-time
passcode verification, and single-use password-reset exchange, all against a
relational token store that is the single source of truth.

Architecture:

  - Service: Orchestrates the lifecycle rules (Login, IssuePair, VerifyOTP).
  - Repository: Abstracted interfaces for Postgres (accounts, tokens) and
    Redis (delivery cooldown).
  - Security: Bcrypt password hashes and HMAC-signed bearer strings.

Every validation re-reads the token store; no in-memory cache of token
validity exists, so revocation takes effect on the next request.
*/
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medorahealth/medora/internal/platform/apperr"
	"github.com/medorahealth/medora/internal/platform/ctxutil"
	"github.com/medorahealth/medora/internal/platform/mailer"
	"github.com/medorahealth/medora/internal/platform/sec"
	"github.com/medorahealth/medora/internal/platform/validate"
)

// # Contracts & Types

// TokenSigner defines the contract for producing and verifying signed bearer
// credentials. Satisfied by [sec.TokenSigner].
type TokenSigner interface {
	// Sign produces a signed bearer string carrying the claims with the
	// given validity window.
	Sign(claims sec.Claims, timeToLive time.Duration) (string, error)

	// Verify fails closed: any signature mismatch, malformed payload, or
	// embedded expiry yields an error.
	Verify(tokenString string) (*sec.Claims, error)
}

// TokenPair carries the two signed strings produced by one issuance event.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session represents a successfully established login session.
type Session struct {
	TokenPair
	Account *Account `json:"account"`
}

// VerifiedSession is the result of a successful passcode verification: a
// fresh credential pair plus the single-use exchange identifier that may be
// redeemed for an immediately following password reset.
type VerifiedSession struct {
	ExchangeTokenID int64 `json:"token_id"`
	TokenPair
}

// Service implements the token lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to issuance, validation,
// or reset logic must be reviewed by the security team.
//
// # Concurrency
//
// Service holds no mutable state and is safe for concurrent use; the token
// store is the only shared resource and all multi-step mutations run inside
// its bounded transactions.
type Service struct {
	accountRepository  AccountRepository
	tokenRepository    TokenRepository
	cooldownRepository CooldownRepository
	signer             TokenSigner
	notifier           mailer.Mailer
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	accountRepo AccountRepository,
	tokenRepo TokenRepository,
	cooldownRepo CooldownRepository,
	signer TokenSigner,
	notifier mailer.Mailer,
) *Service {
	return &Service{
		accountRepository:  accountRepo,
		tokenRepository:    tokenRepo,
		cooldownRepository: cooldownRepo,
		signer:             signer,
		notifier:           notifier,
	}
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

/*
Login validates account credentials and issues a fresh token pair.

Description: Loads the account by normalized email and performs a
constant-time password comparison. Unknown email and wrong password collapse
into the same generic failure to prevent account enumeration.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Transport-ready session credentials
  - error: INVALID_CREDENTIALS or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*Session, error) {
	v := &validate.Validator{}
	if err := v.
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		Err(); err != nil {
		return nil, err
	}

	// Unknown email: generic failure, the real cause stays in logs.
	account, err := service.accountRepository.FindByEmail(context, input.Email)
	if err != nil {
		return nil, ErrInvalidCredentials.WithCause(err)
	}

	// bcrypt comparison is constant-time, preventing timing attacks.
	if !sec.CheckPasswordHash(input.Password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	pair, err := service.IssuePair(context, account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	return &Session{TokenPair: *pair, Account: account}, nil
}

// # Paired Issuance

/*
IssuePair creates one access and one refresh record together and returns
their signed strings.

Description: A record's own ID must appear inside its signed claims, so
issuance is two-phase: create both rows, sign both identifiers, then write
the signed strings back into the rows. The whole sequence runs in a single
bounded transaction; a failure at any step leaves no orphan rows.

Parameters:
  - ctx: context.Context
  - accountID: int64
  - email: string

Returns:
  - *TokenPair: Both signed strings
  - error: TX_TIMEOUT or signing/storage failures
*/
func (service *Service) IssuePair(ctx context.Context, accountID int64, email string) (*TokenPair, error) {
	var pair *TokenPair

	// The closure receives the transaction-scoped context; every statement
	// inside runs under the transaction deadline.
	err := service.tokenRepository.InTx(ctx, func(context context.Context, tx TokenRepository) error {
		issued, err := service.issuePairOn(context, tx, accountID, email)
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// issuePairOn performs the two-phase issuance against an already
// transaction-scoped repository, so passcode verification can bundle it with
// the passcode consumption.
func (service *Service) issuePairOn(context context.Context, tx TokenRepository, accountID int64, email string) (*TokenPair, error) {
	now := time.Now()

	// Phase one: create both rows so their IDs exist.
	access := &Token{
		AccountID:  accountID,
		TokenType:  TypeAccess,
		ExpiryDate: now.Add(AccessTokenTTL),
	}
	if err := tx.Create(context, access); err != nil {
		return nil, fmt.Errorf("auth_service_create_access_failed: %w", err)
	}

	refresh := &Token{
		AccountID:      accountID,
		TokenType:      TypeRefresh,
		ExpiryDate:     now.Add(RefreshTokenTTL),
		RelatedTokenID: &access.ID,
	}
	if err := tx.Create(context, refresh); err != nil {
		return nil, fmt.Errorf("auth_service_create_refresh_failed: %w", err)
	}

	// Phase two: sign each row's identifier into its own claims, then write
	// the signed strings back.
	accessString, err := service.signer.Sign(sec.Claims{
		AccountID: accountID,
		Email:     email,
		TokenID:   access.ID,
	}, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_sign_access_failed: %w", err)
	}

	refreshString, err := service.signer.Sign(sec.Claims{
		AccountID: accountID,
		Email:     email,
		TokenID:   refresh.ID,
	}, RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_sign_refresh_failed: %w", err)
	}

	if err := tx.UpdateData(context, access.ID, accessString); err != nil {
		return nil, fmt.Errorf("auth_service_store_access_failed: %w", err)
	}
	if err := tx.UpdateData(context, refresh.ID, refreshString); err != nil {
		return nil, fmt.Errorf("auth_service_store_refresh_failed: %w", err)
	}

	return &TokenPair{AccessToken: accessString, RefreshToken: refreshString}, nil
}

// # Validation

/*
Validate resolves a signed bearer string into its owning account.

Description: Signature verification and the stored record's own expiry are
both enforced; whichever is stricter wins. Revoked, expired, absent, and
malformed credentials are indistinguishable to the caller; the distinction
lives only in server-side logs.

Parameters:
  - context: context.Context
  - tokenString: string
  - expected: TokenType (access for bearer auth, refresh for rotation)

Returns:
  - *Account: Owning account (including soft-deleted; caller's policy)
  - *Token: Backing record
  - error: INVALID_TOKEN for every rejection
*/
func (service *Service) Validate(context context.Context, tokenString string, expected TokenType) (*Account, *Token, error) {
	logger := ctxutil.GetLogger(context)

	claims, err := service.signer.Verify(tokenString)
	if err != nil {
		logger.DebugContext(context, "token_rejected", slog.String("reason", "signature"))
		return nil, nil, ErrInvalidToken.WithCause(err)
	}

	// A credential without a record identifier was not minted here.
	if claims.TokenID == 0 {
		return nil, nil, ErrInvalidToken
	}

	record, err := service.tokenRepository.FindByID(context, claims.TokenID)
	if err != nil {
		logger.DebugContext(context, "token_rejected", slog.String("reason", "record_missing"))
		return nil, nil, ErrInvalidToken.WithCause(err)
	}

	if record.TokenType != expected {
		return nil, nil, ErrInvalidToken
	}

	// Second expiry layer: the record's own window, independent of the
	// expiry embedded in the signature.
	if !record.Active(time.Now()) {
		logger.DebugContext(context, "token_rejected", slog.String("reason", "record_inactive"))
		return nil, nil, ErrInvalidToken
	}

	// The record must belong to the account named in the claims.
	if record.AccountID != claims.AccountID {
		return nil, nil, ErrInvalidToken
	}

	account, err := service.accountRepository.FindByID(context, record.AccountID)
	if err != nil {
		logger.DebugContext(context, "token_rejected", slog.String("reason", "account_missing"))
		return nil, nil, ErrInvalidToken.WithCause(err)
	}

	return account, record, nil
}

/*
ValidateAccessToken adapts [Service.Validate] to the authorization
middleware contract.

Description: Applies the request-layer policy on top of core validation:
bearer credentials of soft-deleted accounts no longer authenticate.

Parameters:
  - context: context.Context
  - tokenString: string

Returns:
  - *sec.Principal: Context-ready identity projection
  - error: INVALID_TOKEN for every rejection
*/
func (service *Service) ValidateAccessToken(context context.Context, tokenString string) (*sec.Principal, error) {
	account, _, err := service.Validate(context, tokenString, TypeAccess)
	if err != nil {
		return nil, err
	}

	if account.IsDeleted {
		return nil, ErrInvalidToken
	}

	return account.Principal(), nil
}

// # One-Time Passcodes

/*
SendOTP generates and delivers a fresh passcode to the account's email.

Description: The code is emailed before it is persisted, so a failed delivery
never leaves a redeemable code behind. Multiple outstanding passcodes per
account are permitted; verification matches on account, code, and window
together.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: ACCOUNT_NOT_FOUND, RATE_LIMITED, NOTIFY_FAILED, or storage errors
*/
func (service *Service) SendOTP(context context.Context, email string) error {
	v := &validate.Validator{}
	if err := v.
		Required(FieldEmail, email).
		Email(FieldEmail, email).
		Err(); err != nil {
		return err
	}

	account, err := service.accountRepository.FindByEmail(context, email)
	if err != nil {
		return ErrAccountNotFound.WithCause(err)
	}

	return service.sendCode(context, account)
}

/*
ForgotPassword starts the password-recovery flow for an account.

Description: Same delivery as [Service.SendOTP], plus the account is marked
as having an outstanding reset so support tooling can see it.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: ACCOUNT_NOT_FOUND, RATE_LIMITED, NOTIFY_FAILED, or storage errors
*/
func (service *Service) ForgotPassword(context context.Context, email string) error {
	v := &validate.Validator{}
	if err := v.
		Required(FieldEmail, email).
		Email(FieldEmail, email).
		Err(); err != nil {
		return err
	}

	account, err := service.accountRepository.FindByEmail(context, email)
	if err != nil {
		return ErrAccountNotFound.WithCause(err)
	}

	if err := service.sendCode(context, account); err != nil {
		return err
	}

	if err := service.accountRepository.MarkResetPending(context, account.ID); err != nil {
		return fmt.Errorf("auth_service_mark_reset_failed: %w", err)
	}

	return nil
}

// sendCode generates, delivers, and persists one passcode for the account.
func (service *Service) sendCode(context context.Context, account *Account) error {
	logger := ctxutil.GetLogger(context)
	recipient := strings.ToLower(account.Email)

	// Delivery throttle. The cooldown store is advisory: if it is down we
	// log and keep going rather than block password recovery.
	free, err := service.cooldownRepository.Acquire(context, recipient, OTPResendCooldown)
	if err != nil {
		logger.WarnContext(context, "otp_cooldown_unavailable", slog.String("error", err.Error()))
	} else if !free {
		return apperr.RateLimited(int(OTPResendCooldown.Seconds()))
	}

	code, err := sec.GenerateOTP()
	if err != nil {
		return fmt.Errorf("auth_service_generate_otp_failed: %w", err)
	}

	// Deliver first: a definitive send failure before the response is a hard
	// failure of the whole operation.
	if err := service.notifier.SendOTP(context, recipient, code); err != nil {
		logger.ErrorContext(context, "otp_delivery_failed",
			slog.Int64("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return ErrNotifyFailed.WithCause(err)
	}

	record := &Token{
		AccountID:  account.ID,
		TokenType:  TypeOTP,
		TokenData:  code,
		ExpiryDate: time.Now().Add(OTPTTL),
	}
	if err := service.tokenRepository.Create(context, record); err != nil {
		return fmt.Errorf("auth_service_store_otp_failed: %w", err)
	}

	logger.InfoContext(context, "otp_issued", slog.Int64("account_id", account.ID))
	return nil
}

/*
VerifyOTP redeems a passcode for a fresh credential pair.

Description: The matching passcode record is consumed and the pair issued in
one bounded transaction. Of two racing verifications of the same code,
exactly one wins; the loser observes the record already consumed. The
consumed record's identifier is handed back as the single-use exchange key
for an immediately following password reset.

Parameters:
  - ctx: context.Context
  - email: string
  - code: string

Returns:
  - *VerifiedSession: Credential pair plus exchange identifier
  - error: ACCOUNT_NOT_FOUND, INVALID_OTP, TX_TIMEOUT, or storage errors
*/
func (service *Service) VerifyOTP(ctx context.Context, email, code string) (*VerifiedSession, error) {
	v := &validate.Validator{}
	if err := v.
		Required(FieldEmail, email).
		Email(FieldEmail, email).
		Digits(FieldOTP, code, sec.OTPDigits).
		Err(); err != nil {
		return nil, err
	}

	account, err := service.accountRepository.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrAccountNotFound.WithCause(err)
	}

	var result *VerifiedSession

	err = service.tokenRepository.InTx(ctx, func(context context.Context, tx TokenRepository) error {
		record, err := tx.FindActiveOTP(context, account.ID, code, time.Now())
		if err != nil {
			return ErrInvalidOTP.WithCause(err)
		}

		// The consumption update is the single decision point under
		// concurrency: losing a race here means another verification of the
		// same code already succeeded.
		won, err := tx.Consume(context, record.ID)
		if err != nil {
			return fmt.Errorf("auth_service_consume_otp_failed: %w", err)
		}
		if !won {
			return ErrInvalidOTP
		}

		pair, err := service.issuePairOn(context, tx, account.ID, account.Email)
		if err != nil {
			return err
		}

		result = &VerifiedSession{ExchangeTokenID: record.ID, TokenPair: *pair}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// # Password Reset

/*
ResetPassword completes the recovery flow using the exchange identifier
handed out by [Service.VerifyOTP].

Description: Redemption requires the otp record to carry the verification
marker (it was revoked when its code was verified) and to still hold its
code. Redeeming clears the code, so a second attempt with the same
identifier fails, and a pending record whose code was never presented is
not redeemable at all.

Parameters:
  - context: context.Context
  - exchangeTokenID: int64
  - newPassword: string

Returns:
  - error: INVALID_TOKEN on a missing or replayed identifier, or update failures
*/
func (service *Service) ResetPassword(context context.Context, exchangeTokenID int64, newPassword string) error {
	v := &validate.Validator{}
	if err := v.
		Required(FieldNewPassword, newPassword).
		MinLen(FieldNewPassword, newPassword, PasswordMinLen).
		MaxLen(FieldNewPassword, newPassword, PasswordMaxLen).
		Custom(FieldTokenID, exchangeTokenID < 1, "Must be a positive integer").
		Err(); err != nil {
		return err
	}

	accountID, err := service.tokenRepository.RedeemExchange(context, exchangeTokenID)
	if err != nil {
		if apperr.IsAppError(err) {
			return ErrInvalidToken.WithCause(err)
		}
		return fmt.Errorf("auth_service_redeem_exchange_failed: %w", err)
	}

	hash, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_hash_failed: %w", err)
	}

	if err := service.accountRepository.UpdatePassword(context, accountID, hash); err != nil {
		return fmt.Errorf("auth_service_reset_update_failed: %w", err)
	}

	// Confirmation email is best-effort; the reset already succeeded.
	if account, err := service.accountRepository.FindByID(context, accountID); err == nil {
		if err := service.notifier.SendPasswordChanged(context, account.Email); err != nil {
			ctxutil.GetLogger(context).WarnContext(context, "reset_confirmation_failed",
				slog.Int64("account_id", accountID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// # Session Rotation

/*
Refresh exchanges a valid refresh credential for a brand-new pair.

Description: Rotation revokes the old pair (both siblings) and issues a fresh
one in a single transaction, so a captured refresh string can be replayed at
most once. Consuming the presented record is the single decision point under
concurrency: of two rotations racing on the same refresh string, the loser
finds the record already consumed and is rejected, even though both passed
validation while the record was still live.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - *Session: New session credentials
  - error: INVALID_TOKEN, TX_TIMEOUT, or storage failures
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	account, record, err := service.Validate(ctx, refreshToken, TypeRefresh)
	if err != nil {
		return nil, err
	}

	if account.IsDeleted {
		return nil, ErrInvalidToken
	}

	var pair *TokenPair

	err = service.tokenRepository.InTx(ctx, func(context context.Context, tx TokenRepository) error {
		won, err := tx.Consume(context, record.ID)
		if err != nil {
			return fmt.Errorf("auth_service_refresh_consume_failed: %w", err)
		}
		if !won {
			return ErrInvalidToken
		}

		// The paired access record is swept alongside; the presented record
		// is already consumed above.
		if err := tx.RevokeFamily(context, record.ID); err != nil {
			return fmt.Errorf("auth_service_refresh_revoke_failed: %w", err)
		}

		issued, err := service.issuePairOn(context, tx, account.ID, account.Email)
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Session{TokenPair: *pair, Account: account}, nil
}

/*
Logout revokes the session behind a refresh credential.

Description: Idempotent: an already-invalid credential means there is nothing
left to revoke, which is a success from the caller's point of view.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Revocation failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {
	claims, err := service.signer.Verify(refreshToken)
	if err != nil {
		return nil
	}

	record, err := service.tokenRepository.FindByID(context, claims.TokenID)
	if err != nil || record.AccountID != claims.AccountID {
		return nil
	}

	if err := service.tokenRepository.RevokeFamily(context, record.ID); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	return nil
}
