// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medorahealth/medora/internal/identity/auth"
	"github.com/medorahealth/medora/internal/platform/apperr"
	"github.com/medorahealth/medora/internal/platform/ctxutil"
	"github.com/medorahealth/medora/internal/platform/sec"
	"github.com/medorahealth/medora/internal/platform/validate"
	"github.com/medorahealth/medora/pkg/pagination"
)

// # Service Layer

// Service orchestrates account enrollment and profile management on top of
// the token lifecycle engine.
type Service struct {
	accountRepository auth.AccountRepository
	authService       *auth.Service
	logger            *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(accountRepo auth.AccountRepository, authService *auth.Service, logger *slog.Logger) *Service {
	return &Service{
		accountRepository: accountRepo,
		authService:       authService,
		logger:            logger,
	}
}

// # Enrollment

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
	DateOfBirth *time.Time
	Role        sec.AccountRole
}

/*
Register validates, hashes, and persists a brand-new account, then signs the
caller straight in.

Description: Enrollment issues a credential pair immediately and delivers a
verification passcode as a best-effort side effect; a failed delivery never
fails the enrollment itself.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *auth.Session: Created account plus its first credential pair
  - error: Conflict (if the email exists), validation, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*auth.Session, error) {
	role := input.Role
	if role == "" {
		role = sec.RolePatient
	}

	v := &validate.Validator{}
	if err := v.
		Required(auth.FieldFirstName, input.FirstName).
		MaxLen(auth.FieldFirstName, input.FirstName, 50).
		Required(auth.FieldLastName, input.LastName).
		MaxLen(auth.FieldLastName, input.LastName, 50).
		Required(auth.FieldEmail, input.Email).
		Email(auth.FieldEmail, input.Email).
		Required(auth.FieldPassword, input.Password).
		MinLen(auth.FieldPassword, input.Password, auth.PasswordMinLen).
		MaxLen(auth.FieldPassword, input.Password, auth.PasswordMaxLen).
		OneOf(auth.FieldAccountType, string(role), string(sec.RolePatient), string(sec.RoleDoctor)).
		Custom(auth.FieldPhoneNumber, input.PhoneNumber != "" && !phoneShape(input.PhoneNumber), "Must be a valid phone number").
		Err(); err != nil {
		return nil, err
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account_service_hash_failed: %w", err)
	}

	account := &auth.Account{
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PhoneNumber:  input.PhoneNumber,
		PasswordHash: hash,
		DateOfBirth:  input.DateOfBirth,
		Role:         role,
	}

	// The store's unique index on lower(email) is the authority on
	// duplicates; a racing double-submit surfaces as Conflict here.
	if err := service.accountRepository.Create(context, account); err != nil {
		return nil, err
	}

	pair, err := service.authService.IssuePair(context, account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	// Verification passcode is best-effort; enrollment already succeeded.
	if err := service.authService.SendOTP(context, account.Email); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "enrollment_otp_skipped",
			slog.Int64("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	service.logger.Info("account_registered",
		slog.Int64("account_id", account.ID),
		slog.String("role", string(account.Role)),
	)

	return &auth.Session{TokenPair: *pair, Account: account}, nil
}

// phoneShape mirrors the validator's phone rule for optional fields.
func phoneShape(value string) bool {
	v := &validate.Validator{}
	return !v.Phone(auth.FieldPhoneNumber, value).HasErrors()
}

// # Profile Management

/*
GetProfile retrieves the full private profile of an account.

Parameters:
  - context: context.Context
  - accountID: int64

Returns:
  - *auth.Account: The hydrated profile
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, accountID int64) (*auth.Account, error) {
	account, err := service.accountRepository.FindByID(context, accountID)
	if err != nil {
		return nil, err
	}

	if account.IsDeleted {
		return nil, apperr.NotFound("Account")
	}

	return account, nil
}

// UpdateProfileInput defines the mutable subset of account profile fields.
type UpdateProfileInput struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	DateOfBirth *time.Time
}

/*
UpdateProfile applies a partial set of changes to an account's metadata.

Description: Fetches the existing state, overrides provided fields, and
synchronizes the change to persistent storage.

Parameters:
  - context: context.Context
  - accountID: int64
  - input: UpdateProfileInput

Returns:
  - *auth.Account: The updated profile
  - error: Validation, not found, or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, accountID int64, input UpdateProfileInput) (*auth.Account, error) {
	account, err := service.GetProfile(context, accountID)
	if err != nil {
		return nil, err
	}

	// Apply delta updates
	if input.FirstName != nil {
		account.FirstName = *input.FirstName
	}

	if input.LastName != nil {
		account.LastName = *input.LastName
	}

	if input.PhoneNumber != nil {
		account.PhoneNumber = *input.PhoneNumber
	}

	if input.DateOfBirth != nil {
		account.DateOfBirth = input.DateOfBirth
	}

	v := &validate.Validator{}
	if err := v.
		Required(auth.FieldFirstName, account.FirstName).
		MaxLen(auth.FieldFirstName, account.FirstName, 50).
		Required(auth.FieldLastName, account.LastName).
		MaxLen(auth.FieldLastName, account.LastName, 50).
		Custom(auth.FieldPhoneNumber, account.PhoneNumber != "" && !phoneShape(account.PhoneNumber), "Must be a valid phone number").
		Err(); err != nil {
		return nil, err
	}

	if err := service.accountRepository.Update(context, account); err != nil {
		return nil, err
	}

	service.logger.Info("account_profile_updated", slog.Int64("account_id", accountID))

	return account, nil
}

/*
Deactivate soft-deletes an account.

Description: The row is retained for audit; outstanding bearer credentials
stop authenticating on their next validation because the request layer
rejects deleted accounts.

Parameters:
  - context: context.Context
  - accountID: int64

Returns:
  - error: Not found or storage failures
*/
func (service *Service) Deactivate(context context.Context, accountID int64) error {
	if _, err := service.GetProfile(context, accountID); err != nil {
		return err
	}

	if err := service.accountRepository.SoftDelete(context, accountID); err != nil {
		return err
	}

	service.logger.Info("account_deactivated", slog.Int64("account_id", accountID))
	return nil
}

/*
List returns one page of live accounts plus pagination metadata.

Parameters:
  - context: context.Context
  - params: pagination.Params

Returns:
  - []*auth.Account: Page of profiles
  - pagination.Meta: Metadata for the response envelope
  - error: Retrieval failures
*/
func (service *Service) List(context context.Context, params pagination.Params) ([]*auth.Account, pagination.Meta, error) {
	accounts, total, err := service.accountRepository.List(context, params.Limit, params.Offset())
	if err != nil {
		return nil, pagination.Meta{}, err
	}

	return accounts, pagination.NewMeta(params.Page, params.Limit, total), nil
}

// # Startup Bootstrap

/*
SeedAdmin ensures exactly one administrator account exists.

Description: Idempotent initialization invoked once during process startup,
guarded by the email uniqueness check. Steady-state request handling never
calls this.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - error: Hashing or storage failures
*/
func (service *Service) SeedAdmin(context context.Context, email, password string) error {
	if _, err := service.accountRepository.FindByEmail(context, email); err == nil {
		service.logger.Info("admin_seed_skipped", slog.String("reason", "already_exists"))
		return nil
	}

	hash, err := sec.HashPassword(password)
	if err != nil {
		return fmt.Errorf("account_service_seed_hash_failed: %w", err)
	}

	admin := &auth.Account{
		FirstName:    "Super",
		LastName:     "Admin",
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         sec.RoleAdmin,
	}

	if err := service.accountRepository.Create(context, admin); err != nil {
		// A concurrent instance seeding the same admin is not a failure.
		if appErr := apperr.As(err); appErr != nil && appErr.Code == "CONFLICT" {
			service.logger.Info("admin_seed_skipped", slog.String("reason", "concurrent_seed"))
			return nil
		}
		return fmt.Errorf("account_service_seed_failed: %w", err)
	}

	service.logger.Info("admin_seed_created", slog.Int64("account_id", admin.ID))
	return nil
}
