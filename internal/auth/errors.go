// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by repositories when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by repositories when the normalized email is
// already owned by another account.
var ErrDuplicateEmail = errors.New("duplicate email")

// Domain error codes. Callers match on these to pick a user-facing message.
const (
	CodeDuplicateAccount      = "AUTH_DUPLICATE_ACCOUNT"
	CodeAccountNotFound       = "AUTH_ACCOUNT_NOT_FOUND"
	CodeAccountNotVerified    = "AUTH_ACCOUNT_NOT_VERIFIED"
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidOrExpiredToken = "AUTH_INVALID_OR_EXPIRED_TOKEN"
	CodeTokenExpired          = "AUTH_TOKEN_EXPIRED"
	CodeAlreadyVerified       = "AUTH_ALREADY_VERIFIED"
	CodeWeakPassword          = "AUTH_WEAK_PASSWORD"
	CodeInvalidInput          = "AUTH_INVALID_INPUT"
)

// CodeStoreFailed marks an unexpected repository failure. It is not a domain kind.
const CodeStoreFailed = "AUTH_STORE_FAILED"

var domainCodes = map[string]struct{}{
	CodeDuplicateAccount:      {},
	CodeAccountNotFound:       {},
	CodeAccountNotVerified:    {},
	CodeInvalidCredentials:    {},
	CodeInvalidOrExpiredToken: {},
	CodeTokenExpired:          {},
	CodeAlreadyVerified:       {},
	CodeWeakPassword:          {},
	CodeInvalidInput:          {},
}

// ErrorCode returns the oops code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// IsDomainError reports whether err is one of the account/credential kinds
// rather than an infrastructure failure.
func IsDomainError(err error) bool {
	_, ok := domainCodes[ErrorCode(err)]
	return ok
}

// storeError wraps an unexpected repository failure.
func storeError(operation string, err error) error {
	return oops.Code(CodeStoreFailed).
		With("operation", operation).
		Wrap(err)
}
