// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the authorization role of an account.
type Role string

// Known roles.
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole parses a role name case-insensitively. An empty name is RoleUser.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(RoleUser):
		return RoleUser, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	default:
		return "", oops.Code(CodeInvalidInput).With("role", s).Errorf("unknown role %q", s)
	}
}

// AccountState is derived from an account's fields at a point in time.
type AccountState int

// Account states.
const (
	StatePendingVerification AccountState = iota
	StateActive
	StatePasswordResetPending
)

// String returns the state name.
func (s AccountState) String() string {
	switch s {
	case StatePendingVerification:
		return "pending_verification"
	case StateActive:
		return "active"
	case StatePasswordResetPending:
		return "password_reset_pending"
	default:
		return "unknown"
	}
}

// Account is a user account. Single-use tokens are held as HashToken digests.
type Account struct {
	ID                    ulid.ULID
	Email                 string
	FullName              string
	PasswordHash          string
	Role                  Role
	Enabled               bool
	VerificationTokenHash *string
	ResetTokenHash        *string
	ResetTokenExpiry      *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// State derives the lifecycle state. An expired reset token does not count.
func (a *Account) State(now time.Time) AccountState {
	if !a.Enabled {
		return StatePendingVerification
	}
	if a.ResetTokenHash != nil && a.ResetTokenExpiry != nil && a.ResetTokenExpiry.After(now) {
		return StatePasswordResetPending
	}
	return StateActive
}

// IssueVerification stores a fresh verification token digest, replacing any
// previous one.
func (a *Account) IssueVerification(tokenHash string, now time.Time) error {
	if a.Enabled {
		return oops.Code(CodeAlreadyVerified).
			With("account_id", a.ID.String()).
			Errorf("account is already verified")
	}
	a.VerificationTokenHash = &tokenHash
	a.UpdatedAt = now
	return nil
}

// ConsumeVerification enables the account and clears its verification token.
func (a *Account) ConsumeVerification(now time.Time) error {
	if a.Enabled {
		return oops.Code(CodeAlreadyVerified).
			With("account_id", a.ID.String()).
			Errorf("account is already verified")
	}
	a.Enabled = true
	a.VerificationTokenHash = nil
	a.UpdatedAt = now
	return nil
}

// IssueReset stores a reset token digest valid until expiry.
func (a *Account) IssueReset(tokenHash string, expiry, now time.Time) error {
	if !expiry.After(now) {
		return oops.Code("AUTH_INVALID_RESET_EXPIRY").
			With("expiry", expiry).
			Errorf("reset token expiry must be in the future")
	}
	a.ResetTokenHash = &tokenHash
	a.ResetTokenExpiry = &expiry
	a.UpdatedAt = now
	return nil
}

// ConsumeReset replaces the password hash and clears the reset token.
// An expired token is left in place.
func (a *Account) ConsumeReset(newPasswordHash string, now time.Time) error {
	if a.ResetTokenHash == nil || a.ResetTokenExpiry == nil {
		return oops.Code(CodeInvalidOrExpiredToken).
			With("account_id", a.ID.String()).
			Errorf("no password reset pending")
	}
	if !a.ResetTokenExpiry.After(now) {
		return oops.Code(CodeTokenExpired).
			With("account_id", a.ID.String()).
			With("expired_at", *a.ResetTokenExpiry).
			Errorf("password reset token has expired")
	}
	a.PasswordHash = newPasswordHash
	a.ResetTokenHash = nil
	a.ResetTokenExpiry = nil
	a.UpdatedAt = now
	return nil
}

// AccountFilter narrows List results.
type AccountFilter struct {
	// Role restricts results to one role when non-empty.
	Role Role
}

// AccountRepository manages account persistence.
// Emails passed in are already normalized.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByVerificationToken retrieves the account holding the token digest.
	GetByVerificationToken(ctx context.Context, tokenHash string) (*Account, error)

	// GetByResetToken retrieves the account holding the reset token digest.
	GetByResetToken(ctx context.Context, tokenHash string) (*Account, error)

	// Update writes all mutable fields. Returns ErrDuplicateEmail if a changed
	// email collides with another account.
	Update(ctx context.Context, account *Account) error

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error

	// List returns accounts ordered by creation time.
	List(ctx context.Context, filter AccountFilter) ([]*Account, error)

	// Count returns the number of accounts.
	Count(ctx context.Context) (int64, error)
}
