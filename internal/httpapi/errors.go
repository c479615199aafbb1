// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/portfolioapp/authcore/internal/auth"
	"github.com/portfolioapp/authcore/pkg/errutil"
)

// Client-facing messages. Internal error text is never sent to clients.
const (
	msgInternal            = "Internal server error"
	msgInvalidBody         = "Invalid request body"
	msgEmailRequired       = "Email is required"
	msgResetTokenRequired  = "Reset token is required"
	msgWeakPassword        = "Password must be at least 6 characters long"
	msgDuplicate           = "User with this email already exists"
	msgNotFound            = "User not found"
	msgNotVerified         = "Please verify your email before logging in. Check your inbox for the verification link."
	msgInvalidCredentials  = "Invalid email or password"
	msgInvalidToken        = "Invalid or expired token"
	msgInvalidVerification = "Invalid or expired verification token"
	msgInvalidReset        = "Invalid or expired reset token"
	msgResetExpired        = "Reset token has expired"
	msgAlreadyVerified     = "Email is already verified"
	msgInvalidInput        = "Invalid input"
	msgInvalidID           = "Invalid user id"
	msgAuthRequired        = "Authentication required"
	msgInvalidSession      = "Invalid or expired session token"
	msgAdminRequired       = "Admin access required"
	msgOAuthNoEmail        = "Email not provided by OAuth provider"
	msgTooManyRequests     = "Too many requests, please try again later"
)

type errorBody struct {
	Error string `json:"error"`
}

type apiError struct {
	status  int
	message string
}

var domainErrors = map[string]apiError{
	auth.CodeDuplicateAccount:      {http.StatusConflict, msgDuplicate},
	auth.CodeAccountNotFound:       {http.StatusNotFound, msgNotFound},
	auth.CodeAccountNotVerified:    {http.StatusForbidden, msgNotVerified},
	auth.CodeInvalidCredentials:    {http.StatusUnauthorized, msgInvalidCredentials},
	auth.CodeInvalidOrExpiredToken: {http.StatusBadRequest, msgInvalidToken},
	auth.CodeTokenExpired:          {http.StatusBadRequest, msgResetExpired},
	auth.CodeAlreadyVerified:       {http.StatusBadRequest, msgAlreadyVerified},
	auth.CodeWeakPassword:          {http.StatusBadRequest, msgWeakPassword},
	auth.CodeInvalidInput:          {http.StatusBadRequest, msgInvalidInput},
}

// writeError maps err to a status and fixed message. messages overrides the
// default message per error code for endpoints that word things differently.
// Anything that is not a domain error is logged and reported as a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, messages map[string]string) {
	code := auth.ErrorCode(err)
	mapped, ok := domainErrors[code]
	if !ok {
		errutil.LogErrorContext(r.Context(), s.logger, slog.LevelError, "request failed", err,
			"method", r.Method,
			"route", r.Pattern,
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgInternal})
		return
	}
	if msg, ok := messages[code]; ok {
		mapped.message = msg
	}
	writeJSON(w, mapped.status, errorBody{Error: mapped.message})
}
