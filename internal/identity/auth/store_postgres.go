// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

// Package postgres side of the identity storage layer.
//
// # Architecture
//
// Repositories in this file are strictly separated from domain logic. They
// implement the domain-defined interfaces ([AccountRepository],
// [TokenRepository]) using the [pgxpool.Pool] connection manager. Token
// repositories also run against a pgx.Tx so every lifecycle mutation can
// happen inside one bounded transaction.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medorahealth/medora/internal/platform/apperr"
	"github.com/medorahealth/medora/internal/platform/constants"
)

// querier is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx,
// letting one repository implementation serve both.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolationCode = "23505"

// # Account Repository

// PostgresAccountRepository implements the AccountRepository interface using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

const accountColumns = `
	id, first_name, last_name, email, phone_number, password,
	dob, account_type, reset_password, is_deleted, created_at, updated_at`

// scanAccount hydrates one account row from any pgx row source.
func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.FirstName,
		&account.LastName,
		&account.Email,
		&account.PhoneNumber,
		&account.PasswordHash,
		&account.DateOfBirth,
		&account.Role,
		&account.ResetPending,
		&account.IsDeleted,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

/*
Create persists a new account record into the identity.account table.

Description: Deep-persists account metadata; the store assigns the ID and
initializes timestamps.

Parameters:
  - context: context.Context
  - account: *Account (Entity to persist)

Returns:
  - error: apperr.Conflict on duplicate email, or connectivity errors
*/
func (repository *PostgresAccountRepository) Create(context context.Context, account *Account) error {
	const query = `
		INSERT INTO identity.account (
			first_name, last_name, email, phone_number, password, dob, account_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := repository.pool.QueryRow(context, query,
		account.FirstName,
		account.LastName,
		account.Email,
		account.PhoneNumber,
		account.PasswordHash,
		account.DateOfBirth,
		account.Role,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return apperr.Conflict("Email is already registered")
		}
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves an account record by its primary key.

Description: Soft-deleted rows are returned too; whether a deleted account is
acceptable is decided by the caller.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - *Account: Hydrated account entity
  - error: apperr NOT_FOUND or database errors
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id int64) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM identity.account
		WHERE id = $1`

	account, err := scanAccount(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}

	return account, nil
}

/*
FindByEmail retrieves a live account record by its email address.

Description: Matching is case-insensitive; the store keeps a unique index on
lower(email) so at most one row can match.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Account: Hydrated account entity
  - error: apperr NOT_FOUND or database errors
*/
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM identity.account
		WHERE lower(email) = lower($1) AND is_deleted = FALSE`

	account, err := scanAccount(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_email_failed: %w", err)
	}

	return account, nil
}

/*
Update persists changes to an account's mutable profile fields.

Parameters:
  - context: context.Context
  - account: *Account

Returns:
  - error: Update failures
*/
func (repository *PostgresAccountRepository) Update(context context.Context, account *Account) error {
	const query = `
		UPDATE identity.account
		SET first_name = $2, last_name = $3, phone_number = $4, dob = $5, updated_at = now()
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING updated_at`

	err := repository.pool.QueryRow(context, query,
		account.ID,
		account.FirstName,
		account.LastName,
		account.PhoneNumber,
		account.DateOfBirth,
	).Scan(&account.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Account")
		}
		return fmt.Errorf("postgres_account_repo_update_failed: %w", err)
	}

	return nil
}

/*
UpdatePassword replaces only the password hash for a specific account and
clears the reset-pending marker.

Parameters:
  - context: context.Context
  - accountID: int64
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountRepository) UpdatePassword(context context.Context, accountID int64, newHash string) error {
	const query = `
		UPDATE identity.account
		SET password = $2, reset_password = FALSE, updated_at = now()
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, newHash)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_password_failed: %w", err)
	}

	return nil
}

/*
MarkResetPending flags the account as having an outstanding forgot-password flow.

Parameters:
  - context: context.Context
  - accountID: int64

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountRepository) MarkResetPending(context context.Context, accountID int64) error {
	const query = `
		UPDATE identity.account
		SET reset_password = TRUE, updated_at = now()
		WHERE id = $1 AND is_deleted = FALSE`

	_, err := repository.pool.Exec(context, query, accountID)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_mark_reset_failed: %w", err)
	}

	return nil
}

/*
SoftDelete marks an account as deleted using its ID.

Description: Retention-friendly deletion by setting is_deleted.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - error: Side-effect failures
*/
func (repository *PostgresAccountRepository) SoftDelete(context context.Context, id int64) error {
	const query = `
		UPDATE identity.account
		SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_soft_delete_failed: %w", err)
	}

	return nil
}

/*
List returns a page of live accounts ordered by creation time, newest first,
plus the total live count.

Parameters:
  - context: context.Context
  - limit: int
  - offset: int

Returns:
  - []*Account: Page of entities
  - int: Total live account count
  - error: Database retrieval failures
*/
func (repository *PostgresAccountRepository) List(context context.Context, limit, offset int) ([]*Account, int, error) {
	const countQuery = `SELECT count(*) FROM identity.account WHERE is_deleted = FALSE`

	var total int
	if err := repository.pool.QueryRow(context, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_count_failed: %w", err)
	}

	const query = `
		SELECT ` + accountColumns + `
		FROM identity.account
		WHERE is_deleted = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := repository.pool.Query(context, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_failed: %w", err)
	}
	defer rows.Close()

	accounts := make([]*Account, 0, limit)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_account_repo_list_scan_failed: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_rows_failed: %w", err)
	}

	return accounts, total, nil
}

// # Token Repository

// PostgresTokenRepository implements the TokenRepository interface using pgx.
//
// The zero pool field marks a transaction-scoped view produced by [InTx];
// such a view runs all statements on the enclosing pgx.Tx.
type PostgresTokenRepository struct {
	db   querier
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new PostgreSQL implementation of the TokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: pool, pool: pool}
}

const tokenColumns = `
	id, account_id, token_type, token_data, expiry_date,
	related_token_id, is_deleted, created_at, updated_at`

// scanToken hydrates one token row from any pgx row source.
func scanToken(row pgx.Row) (*Token, error) {
	token := &Token{}
	err := row.Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenType,
		&token.TokenData,
		&token.ExpiryDate,
		&token.RelatedTokenID,
		&token.IsDeleted,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return token, nil
}

/*
Create persists a new token record into the identity.token table.

Description: The store assigns the ID, which the issuance flow then embeds in
the record's own signed claims before writing the signed string back.

Parameters:
  - context: context.Context
  - token: *Token

Returns:
  - error: Storage failures
*/
func (repository *PostgresTokenRepository) Create(context context.Context, token *Token) error {
	const query = `
		INSERT INTO identity.token (
			account_id, token_type, token_data, expiry_date, related_token_id
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := repository.db.QueryRow(context, query,
		token.AccountID,
		token.TokenType,
		token.TokenData,
		token.ExpiryDate,
		token.RelatedTokenID,
	).Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)

	if err != nil {
		return fmt.Errorf("postgres_token_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a token record by its primary key, in any state.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - *Token: Hydrated record
  - error: apperr NOT_FOUND or execution errors
*/
func (repository *PostgresTokenRepository) FindByID(context context.Context, id int64) (*Token, error) {
	const query = `
		SELECT ` + tokenColumns + `
		FROM identity.token
		WHERE id = $1`

	token, err := scanToken(repository.db.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Token")
		}
		return nil, fmt.Errorf("postgres_token_repo_find_by_id_failed: %w", err)
	}

	return token, nil
}

/*
FindActiveOTP retrieves the redeemable otp record matching account and code.

Description: Codes are unique only per (account, unexpired window), so the
match includes the account, the code, the type, the deletion flag, and the
expiry instant.

Parameters:
  - context: context.Context
  - accountID: int64
  - code: string
  - now: time.Time

Returns:
  - *Token: Matching record
  - error: apperr NOT_FOUND or execution errors
*/
func (repository *PostgresTokenRepository) FindActiveOTP(context context.Context, accountID int64, code string, now time.Time) (*Token, error) {
	const query = `
		SELECT ` + tokenColumns + `
		FROM identity.token
		WHERE account_id = $1
		  AND token_data = $2
		  AND token_type = 'otp'
		  AND is_deleted = FALSE
		  AND expiry_date >= $3
		ORDER BY created_at DESC
		LIMIT 1`

	token, err := scanToken(repository.db.QueryRow(context, query, accountID, code, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("OTP")
		}
		return nil, fmt.Errorf("postgres_token_repo_find_otp_failed: %w", err)
	}

	return token, nil
}

/*
UpdateData replaces the record's opaque payload.

Parameters:
  - context: context.Context
  - id: int64
  - data: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresTokenRepository) UpdateData(context context.Context, id int64, data string) error {
	const query = `
		UPDATE identity.token
		SET token_data = $2, updated_at = now()
		WHERE id = $1`

	_, err := repository.db.Exec(context, query, id, data)
	if err != nil {
		return fmt.Errorf("postgres_token_repo_update_data_failed: %w", err)
	}

	return nil
}

/*
Consume soft-deletes a record exactly once.

Description: The deletion-flag guard in the WHERE clause makes the row update
the single decision point under concurrency: of N racing callers, the store
lets exactly one through.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - bool: Whether this caller performed the consumption
  - error: Execution errors
*/
func (repository *PostgresTokenRepository) Consume(context context.Context, id int64) (bool, error) {
	const query = `
		UPDATE identity.token
		SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND is_deleted = FALSE`

	tag, err := repository.db.Exec(context, query, id)
	if err != nil {
		return false, fmt.Errorf("postgres_token_repo_consume_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

/*
RevokeFamily soft-deletes the record and its paired sibling.

Description: The pairing link is directional (refresh points at access), so
the predicate covers both the named record, anything pointing at it, and
anything it points at.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - error: Execution errors
*/
func (repository *PostgresTokenRepository) RevokeFamily(context context.Context, id int64) error {
	const query = `
		UPDATE identity.token
		SET is_deleted = TRUE, updated_at = now()
		WHERE (id = $1
		   OR related_token_id = $1
		   OR id = (SELECT related_token_id FROM identity.token WHERE id = $1))
		  AND is_deleted = FALSE`

	_, err := repository.db.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_token_repo_revoke_family_failed: %w", err)
	}

	return nil
}

/*
RedeemExchange redeems a password-reset exchange identifier at most once.

Description: The otp record behind the identifier was soft-deleted when its
code was verified, so the deletion flag doubles as the verification marker:
redemption requires it set, which shuts out pending records whose code was
never presented. The code still being present is what makes the identifier
single-use; clearing it in the same statement makes a second redemption find
no row.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - int64: Owning account ID
  - error: apperr NOT_FOUND when not redeemable, or execution errors
*/
func (repository *PostgresTokenRepository) RedeemExchange(context context.Context, id int64) (int64, error) {
	const query = `
		UPDATE identity.token
		SET token_data = '', updated_at = now()
		WHERE id = $1 AND token_type = 'otp' AND is_deleted = TRUE AND token_data <> ''
		RETURNING account_id`

	var accountID int64
	err := repository.db.QueryRow(context, query, id).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.NotFound("Exchange token")
		}
		return 0, fmt.Errorf("postgres_token_repo_redeem_failed: %w", err)
	}

	return accountID, nil
}

/*
InTx runs fn against a transaction-scoped view of the repository.

Description: The transaction carries the standard token budget as a hard
deadline, and fn receives the deadline-bearing context so every statement
inside the transaction is bounded by it. fn failing, the deadline passing,
or the commit failing all roll back the whole transaction; partial token
state is never committed.

Parameters:
  - parent: context.Context
  - fn: func(context.Context, TokenRepository) error

Returns:
  - error: fn's error, apperr TX_TIMEOUT on deadline, or commit failures
*/
func (repository *PostgresTokenRepository) InTx(parent context.Context, fn func(context.Context, TokenRepository) error) error {

	// Already transaction-scoped: reuse the enclosing transaction and its
	// deadline.
	if repository.pool == nil {
		return fn(parent, repository)
	}

	txContext, cancel := context.WithTimeout(parent, constants.TokenTxTimeout)
	defer cancel()

	tx, err := repository.pool.Begin(txContext)
	if err != nil {
		return mapTxError(fmt.Errorf("postgres_token_repo_begin_failed: %w", err))
	}

	// Rollback is a no-op after a successful commit.
	defer func() { _ = tx.Rollback(txContext) }()

	if err := fn(txContext, &PostgresTokenRepository{db: tx}); err != nil {
		return mapTxError(err)
	}

	if err := tx.Commit(txContext); err != nil {
		return mapTxError(fmt.Errorf("postgres_token_repo_commit_failed: %w", err))
	}

	return nil
}

// mapTxError normalizes deadline expiry into the stable timeout code while
// passing every other error through unchanged.
func mapTxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(err)
	}
	return err
}
