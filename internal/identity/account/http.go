// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

/*
Package account provides the HTTP delivery layer for account management.

It implements the RESTful interface for enrollment, profile access, and the
administrative account listing.

# Security

Everything except enrollment requires an authenticated session. Profile
reads and writes are limited to the owner or an administrator; the listing
is administrator-only.
*/
package account

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medorahealth/medora/internal/identity/auth"
	"github.com/medorahealth/medora/internal/platform/apperr"
	"github.com/medorahealth/medora/internal/platform/middleware"
	"github.com/medorahealth/medora/internal/platform/respond"
	"github.com/medorahealth/medora/internal/platform/sec"
	"github.com/medorahealth/medora/internal/platform/validate"
	"github.com/medorahealth/medora/pkg/pagination"

	requestutil "github.com/medorahealth/medora/internal/platform/request"
)

// Handler implements the HTTP layer for account management.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the account domain's endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Enrollment is the only anonymous endpoint.
	router.Post("/", handler.register)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/{id}", handler.getAccount)
		r.Patch("/{id}", handler.updateAccount)
		r.Delete("/{id}", handler.deleteAccount)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleAdmin))
		r.Get("/", handler.listAccounts)
	})

	return router
}

// # Payloads

type registerRequest struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phone_number"`
	Password    string     `json:"password"`
	DateOfBirth *time.Time `json:"dob"`
	AccountType string     `json:"account_type"`
}

type updateAccountRequest struct {
	FirstName   *string    `json:"first_name"`
	LastName    *string    `json:"last_name"`
	PhoneNumber *string    `json:"phone_number"`
	DateOfBirth *time.Time `json:"dob"`
}

// canAct reports whether the principal may operate on the target account:
// the owner and administrators only.
func canAct(principal *sec.Principal, targetID int64) bool {
	return principal.AccountID == targetID || principal.Role.AtLeast(sec.RoleAdmin)
}

/*
Register enrolls a new account and signs it straight in.

POST /api/v1/accounts

Request:
  - Body: registerRequest

Response:
  - 201: Session: Account profile plus first credential pair
  - 409: CONFLICT: Email already registered
  - 400: VALIDATION_ERROR: Bad input
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	session, err := handler.accountService.Register(request.Context(), RegisterInput{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		Password:    input.Password,
		DateOfBirth: input.DateOfBirth,
		Role:        sec.AccountRole(input.AccountType),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, session)
}

/*
GetAccount retrieves one account profile.

GET /api/v1/accounts/{id}

Response:
  - 200: Account: Hydrated profile
  - 403: FORBIDDEN: Not the owner and not an administrator
  - 404: NOT_FOUND: No live account behind the id
*/
func (handler *Handler) getAccount(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := requestutil.ParamID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !canAct(principal, id) {
		respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
		return
	}

	account, err := handler.accountService.GetProfile(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

/*
UpdateAccount applies partial updates to an account profile.

PATCH /api/v1/accounts/{id}

Request:
  - Body: updateAccountRequest (all fields optional)

Response:
  - 200: Account: Updated profile
  - 403: FORBIDDEN: Not the owner and not an administrator
  - 404: NOT_FOUND: No live account behind the id
*/
func (handler *Handler) updateAccount(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := requestutil.ParamID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !canAct(principal, id) {
		respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
		return
	}

	var input updateAccountRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	account, err := handler.accountService.UpdateProfile(request.Context(), id, UpdateProfileInput{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		PhoneNumber: input.PhoneNumber,
		DateOfBirth: input.DateOfBirth,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

/*
DeleteAccount deactivates an account.

DELETE /api/v1/accounts/{id}

Response:
  - 204: No Content: Account deactivated
  - 403: FORBIDDEN: Not the owner and not an administrator
  - 404: NOT_FOUND: No live account behind the id
*/
func (handler *Handler) deleteAccount(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := requestutil.ParamID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !canAct(principal, id) {
		respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
		return
	}

	if err := handler.accountService.Deactivate(request.Context(), id); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
ListAccounts returns a page of live accounts.

GET /api/v1/accounts?page=&limit=

Response:
  - 200: []Account with pagination metadata
  - 403: FORBIDDEN: Administrator role required
*/
func (handler *Handler) listAccounts(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	accounts, meta, err := handler.accountService.List(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if accounts == nil {
		accounts = []*auth.Account{}
	}

	respond.Paginated(writer, accounts, meta)
}
