// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package auth

import (
	"context"
	"time"
)

// # Account Data Access

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {

	/*
		Create persists a brand-new account.

		Parameters:
		  - context: context.Context
		  - account: *Account (ID is assigned by the store)

		Returns:
		  - error: apperr.Conflict on duplicate email, or persistence failures
	*/
	Create(context context.Context, account *Account) error

	/*
		FindByID returns the account with the given ID, including soft-deleted
		rows. Whether a deleted account is acceptable is the caller's policy.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *Account: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id int64) (*Account, error)

	/*
		FindByEmail returns the live account with the given email. Matching is
		case-insensitive.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Account: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		Update persists changes to mutable profile fields.

		Parameters:
		  - context: context.Context
		  - account: *Account

		Returns:
		  - error: Persistence failures
	*/
	Update(context context.Context, account *Account) error

	/*
		UpdatePassword replaces the account's password hash and clears the
		reset-pending marker.

		Parameters:
		  - context: context.Context
		  - accountID: int64
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, accountID int64, newHash string) error

	/*
		MarkResetPending flags the account as having an outstanding
		forgot-password flow.

		Parameters:
		  - context: context.Context
		  - accountID: int64

		Returns:
		  - error: Persistence failures
	*/
	MarkResetPending(context context.Context, accountID int64) error

	/*
		SoftDelete marks the account as deleted without removing the row.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - error: Persistence failures
	*/
	SoftDelete(context context.Context, id int64) error

	/*
		List returns a page of live accounts ordered by creation time, plus
		the total count for pagination metadata.

		Parameters:
		  - context: context.Context
		  - limit: int
		  - offset: int

		Returns:
		  - []*Account: Page of entities
		  - int: Total live account count
		  - error: Database retrieval failures
	*/
	List(context context.Context, limit, offset int) ([]*Account, int, error)
}

// # Token Data Access

// TokenRepository defines the data access contract for token records.
//
// Implementations must be usable both standalone and inside a transaction
// obtained via [TokenRepository.InTx].
type TokenRepository interface {

	/*
		Create persists a new token record and assigns its ID.

		Parameters:
		  - context: context.Context
		  - token: *Token

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *Token) error

	/*
		FindByID returns the token record with the given ID, regardless of
		its deletion or expiry state. Validity checks belong to the caller.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *Token: Hydrated record
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id int64) (*Token, error)

	/*
		FindActiveOTP returns the unexpired, unconsumed otp record matching
		the account and code. Codes are only unique per account and window,
		so all four conditions are part of the match.

		Parameters:
		  - context: context.Context
		  - accountID: int64
		  - code: string
		  - now: time.Time

		Returns:
		  - *Token: Matching record
		  - error: Database retrieval failures
	*/
	FindActiveOTP(context context.Context, accountID int64, code string, now time.Time) (*Token, error)

	/*
		UpdateData replaces the record's opaque payload. Used by the two-phase
		issuance to write the signed string back after the record's own ID has
		been embedded in its claims.

		Parameters:
		  - context: context.Context
		  - id: int64
		  - data: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateData(context context.Context, id int64, data string) error

	/*
		Consume soft-deletes the record if and only if it has not already been
		consumed. Under concurrent attempts on the same record, exactly one
		caller observes true.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - bool: Whether this caller won the consumption
		  - error: Persistence failures
	*/
	Consume(context context.Context, id int64) (bool, error)

	/*
		RevokeFamily soft-deletes the record and any record paired with it,
		in either direction of the pairing link.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - error: Persistence failures
	*/
	RevokeFamily(context context.Context, id int64) error

	/*
		RedeemExchange redeems a password-reset exchange identifier: the otp
		record it names must carry the verification marker (it was revoked
		when its code was verified) and must still hold its code. Redemption
		clears the code so a second redemption finds nothing. A pending,
		never-verified passcode record is not redeemable.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - int64: Owning account ID
		  - error: pgx.ErrNoRows-backed failure when the identifier is not
		    redeemable, or persistence failures
	*/
	RedeemExchange(context context.Context, id int64) (int64, error)

	/*
		InTx runs fn against a transactional view of the repository. The
		transaction carries a bounded timeout as a hard deadline; fn receives
		the deadline-bearing context and must run every statement on it. On
		error or timeout everything rolls back and no partial token state is
		committed.

		Parameters:
		  - context: context.Context
		  - fn: func(context.Context, TokenRepository) error

		Returns:
		  - error: fn's error, apperr.Timeout on deadline, or commit failures
	*/
	InTx(context context.Context, fn func(context.Context, TokenRepository) error) error
}

// # Volatile Data Access

// CooldownRepository throttles repeated passcode deliveries to one address.
type CooldownRepository interface {

	/*
		Acquire attempts to claim the delivery slot for a recipient.

		Parameters:
		  - context: context.Context
		  - recipient: string
		  - ttl: time.Duration

		Returns:
		  - bool: Whether the slot was free
		  - error: Connectivity failures
	*/
	Acquire(context context.Context, recipient string, ttl time.Duration) (bool, error)
}
