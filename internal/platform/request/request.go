// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medorahealth/medora/internal/platform/apperr"
	"github.com/medorahealth/medora/internal/platform/ctxutil"
	"github.com/medorahealth/medora/internal/platform/sec"
	"github.com/medorahealth/medora/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
ParamID retrieves a named URL parameter and parses it as a numeric identifier.

Returns:
  - int64: The parsed identifier
  - error: apperr.ValidationError if the parameter is not a positive integer
*/
func ParamID(request *http.Request, name string) (int64, error) {
	raw := chi.URLParam(request, name)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   name,
			Message: "Must be a positive integer",
		})
	}

	return id, nil
}

/*
Principal extracts the authenticated account identity from the request context.

Returns nil if the request is not authenticated.
*/
func Principal(request *http.Request) *sec.Principal {
	return ctxutil.GetPrincipal(request.Context())
}

/*
RequiredPrincipal ensures the request is authenticated and returns the identity.

Returns:
  - *sec.Principal: The authenticated account identity
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredPrincipal(request *http.Request) (*sec.Principal, error) {

	// Get the authenticated identity
	principal := ctxutil.GetPrincipal(request.Context())

	// If the request is not authenticated, return an error
	if principal == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return principal, nil
}

/*
RequiredAccountID returns the account ID of the currently logged-in account.

Returns:
  - int64: Account ID
  - error: apperr.Unauthorized if not authenticated
*/
func RequiredAccountID(request *http.Request) (int64, error) {

	// Get the authenticated identity
	principal, err := RequiredPrincipal(request)

	// If the request is not authenticated, return an error
	if err != nil {
		return 0, err
	}

	return principal.AccountID, nil
}
