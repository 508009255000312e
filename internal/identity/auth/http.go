// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

/*
Package auth also provides the HTTP delivery layer for the token lifecycle.

# Architecture

The handler acts as a thin mediation layer between the web and the domain
service:
  - Protocol: Standard RESTful JSON interface.
  - Security: Bearer strings travel in the JSON body both ways; nothing is
    stored in cookies.
  - Verification: Input semantics are enforced in [Service]; handlers only
    decode and translate.

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medorahealth/medora/internal/platform/respond"
	"github.com/medorahealth/medora/internal/platform/validate"

	requestutil "github.com/medorahealth/medora/internal/platform/request"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login           : Authenticates and returns a token pair.
//   - POST /refresh         : Rotates a refresh credential into a new pair.
//   - POST /logout          : Revokes the session behind a refresh credential.
//   - POST /send-otp        : Delivers a fresh one-time passcode.
//   - POST /forgot-password : Starts the password recovery flow.
//   - POST /verify-otp      : Redeems a passcode for a pair and an exchange id.
//   - POST /reset-password  : Completes recovery with the exchange id.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/send-otp", handler.sendOTP)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/verify-otp", handler.verifyOTP)
	router.Post("/reset-password", handler.resetPassword)

	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	TokenID     int64  `json:"token_id"`
	NewPassword string `json:"new_password"`
}

/*
Login authenticates an account and establishes a session.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Session: Token pair and account profile
  - 401: INVALID_CREDENTIALS: Unknown email or wrong password
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

/*
Refresh rotates a refresh credential into a brand-new token pair.

POST /api/v1/auth/refresh

Request:
  - Body: refreshRequest (RefreshToken)

Response:
  - 200: Token pair with type and lifetime metadata
  - 401: INVALID_TOKEN: Expired, revoked, or malformed credential
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldRefreshToken, "This field is required"))
		return
	}

	session, err := handler.authService.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken:  session.AccessToken,
		FieldRefreshToken: session.RefreshToken,
		"token_type":      "Bearer",
		"expires_in":      int64(AccessTokenTTL / time.Second),
	})
}

/*
Logout revokes the session behind a refresh credential.

POST /api/v1/auth/logout

Description: Idempotent; an already-dead credential still yields 204.

Request:
  - Body: refreshRequest (RefreshToken)

Response:
  - 204: No Content: Session revoked or already gone
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.Logout(request.Context(), input.RefreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
SendOTP delivers a fresh one-time passcode to a registered email.

POST /api/v1/auth/send-otp

Request:
  - Body: emailRequest (Email)

Response:
  - 200: Success message
  - 404: ACCOUNT_NOT_FOUND: No live account behind the email
  - 429: RATE_LIMITED: Cooldown window still open
  - 502: NOTIFY_FAILED: Delivery definitively failed
*/
func (handler *Handler) sendOTP(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.SendOTP(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "A verification code has been sent to your email",
	})
}

/*
ForgotPassword starts the password recovery flow.

POST /api/v1/auth/forgot-password

Request:
  - Body: emailRequest (Email)

Response:
  - 200: Success message
  - 404: ACCOUNT_NOT_FOUND: No live account behind the email
  - 502: NOTIFY_FAILED: Delivery definitively failed
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.ForgotPassword(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "A verification code has been sent to your email",
	})
}

/*
VerifyOTP redeems a passcode for a fresh token pair and an exchange id.

POST /api/v1/auth/verify-otp

Request:
  - Body: verifyOTPRequest (Email, OTP)

Response:
  - 200: VerifiedSession: Token pair plus single-use exchange id
  - 401: INVALID_OTP: Wrong, expired, or already-consumed code
*/
func (handler *Handler) verifyOTP(writer http.ResponseWriter, request *http.Request) {
	var input verifyOTPRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	session, err := handler.authService.VerifyOTP(request.Context(), input.Email, input.OTP)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Request:
  - Body: resetPasswordRequest (TokenID, NewPassword)

Response:
  - 200: Success message
  - 401: INVALID_TOKEN: Missing or already-redeemed exchange id
  - 400: VALIDATION_ERROR: Weak password
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.TokenID, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password updated successfully",
	})
}
