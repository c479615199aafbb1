// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolioapp/authcore/internal/auth"
	"github.com/portfolioapp/authcore/pkg/errutil"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    auth.Role
		wantErr bool
	}{
		{"", auth.RoleUser, false},
		{"USER", auth.RoleUser, false},
		{"admin", auth.RoleAdmin, false},
		{" Admin ", auth.RoleAdmin, false},
		{"ROOT", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := auth.ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, auth.CodeInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", auth.NormalizeEmail("  Ann@Example.COM\t"))
	assert.Equal(t, "", auth.NormalizeEmail("   "))
}

func TestAccount_Lifecycle(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	acct := &auth.Account{ID: ulid.Make(), Email: "a@x.com", PasswordHash: "old"}

	require.NoError(t, acct.IssueVerification("v1", now))
	assert.Equal(t, auth.StatePendingVerification, acct.State(now))

	// Resend overwrites the previous token.
	require.NoError(t, acct.IssueVerification("v2", now))
	require.NotNil(t, acct.VerificationTokenHash)
	assert.Equal(t, "v2", *acct.VerificationTokenHash)

	require.NoError(t, acct.ConsumeVerification(now))
	assert.True(t, acct.Enabled)
	assert.Nil(t, acct.VerificationTokenHash)
	assert.Equal(t, auth.StateActive, acct.State(now))

	require.NoError(t, acct.IssueReset("r1", now.Add(time.Hour), now))
	assert.Equal(t, auth.StatePasswordResetPending, acct.State(now))
	assert.Equal(t, auth.StateActive, acct.State(now.Add(2*time.Hour)), "expired reset is not a state")
	assert.True(t, acct.Enabled, "reset does not disable the account")

	require.NoError(t, acct.ConsumeReset("new", now.Add(time.Minute)))
	assert.Equal(t, "new", acct.PasswordHash)
	assert.Nil(t, acct.ResetTokenHash)
	assert.Nil(t, acct.ResetTokenExpiry)
	assert.Equal(t, auth.StateActive, acct.State(now))
}

func TestAccount_TransitionPreconditions(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	t.Run("verification on enabled account", func(t *testing.T) {
		acct := &auth.Account{Enabled: true}
		errutil.AssertErrorCode(t, acct.IssueVerification("v", now), auth.CodeAlreadyVerified)
		errutil.AssertErrorCode(t, acct.ConsumeVerification(now), auth.CodeAlreadyVerified)
		assert.Nil(t, acct.VerificationTokenHash)
	})

	t.Run("reset expiry must be in the future", func(t *testing.T) {
		acct := &auth.Account{Enabled: true}
		err := acct.IssueReset("r", now, now)
		require.Error(t, err)
		assert.Nil(t, acct.ResetTokenHash)
	})

	t.Run("consume without pending reset", func(t *testing.T) {
		acct := &auth.Account{Enabled: true, PasswordHash: "old"}
		errutil.AssertErrorCode(t, acct.ConsumeReset("new", now), auth.CodeInvalidOrExpiredToken)
		assert.Equal(t, "old", acct.PasswordHash)
	})

	t.Run("expired reset leaves state untouched", func(t *testing.T) {
		acct := &auth.Account{Enabled: true, PasswordHash: "old"}
		require.NoError(t, acct.IssueReset("r", now.Add(time.Hour), now))

		err := acct.ConsumeReset("new", now.Add(time.Hour))
		errutil.AssertErrorCode(t, err, auth.CodeTokenExpired)
		assert.Equal(t, "old", acct.PasswordHash)
		assert.NotNil(t, acct.ResetTokenHash)
	})
}

func TestAccountState_String(t *testing.T) {
	assert.Equal(t, "pending_verification", auth.StatePendingVerification.String())
	assert.Equal(t, "active", auth.StateActive.String())
	assert.Equal(t, "password_reset_pending", auth.StatePasswordResetPending.String())
	assert.Equal(t, "unknown", auth.AccountState(42).String())
}
