// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolioapp/authcore/internal/auth"
	"github.com/portfolioapp/authcore/internal/config"
	"github.com/portfolioapp/authcore/pkg/errutil"
)

func sampleAccounts() []*auth.Account {
	created := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return []*auth.Account{
		{
			ID:        ulid.MustParse("01HZ0000000000000000000001"),
			Email:     "ann@example.com",
			FullName:  "Ann",
			Role:      auth.RoleAdmin,
			Enabled:   true,
			CreatedAt: created,
		},
		{
			ID:        ulid.MustParse("01HZ0000000000000000000002"),
			Email:     "bob@example.com",
			FullName:  "Bob",
			Role:      auth.RoleUser,
			CreatedAt: created.Add(time.Hour),
		},
	}
}

func TestWriteAccountsTable(t *testing.T) {
	var buf bytes.Buffer
	writeAccountsTable(&buf, sampleAccounts(), time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "EMAIL")
	assert.Contains(t, string(lines[1]), "ann@example.com")
	assert.Contains(t, string(lines[1]), "active")
	assert.Contains(t, string(lines[1]), "2026-05-04T10:00:00Z")
	assert.Contains(t, string(lines[2]), "pending_verification")
}

func TestWriteAccountsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeAccountsJSON(&buf, sampleAccounts()))

	var rows []accountJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "01HZ0000000000000000000001", rows[0].ID)
	assert.Equal(t, "ADMIN", rows[0].Role)
	assert.True(t, rows[0].Enabled)
	assert.False(t, rows[1].Enabled)
	assert.NotContains(t, buf.String(), "password")
}

func TestWriteAccountsJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeAccountsJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func runAccounts(t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	cmd := newAccountsCmd(deps)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// postgresEnv configures the postgres driver through the environment.
func postgresEnv(t *testing.T) {
	t.Helper()
	isolateEnv(t)
	t.Setenv(config.DatabaseURLEnv, "postgres://localhost:5432/authcore")
	t.Setenv(config.EnvName("auth.jwt_secret"), testSecret)
}

func mockPoolDeps(t *testing.T) (*Deps, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	deps := &Deps{
		PoolFactory: func(context.Context, string) (Pool, error) { return mock, nil },
	}
	return deps, mock
}

func TestAccountsCount(t *testing.T) {
	postgresEnv(t)
	deps, mock := mockPoolDeps(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	out, err := runAccounts(t, deps, "count")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// accountRow returns a stored account row for the given id.
func accountRow(id ulid.ULID) *pgxmock.Rows {
	created := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return pgxmock.NewRows([]string{
		"id", "email", "full_name", "password_hash", "role", "enabled",
		"verification_token_hash", "reset_token_hash", "reset_token_expiry",
		"created_at", "updated_at",
	}).AddRow(id.String(), "ann@example.com", "Ann", "hash", "USER", true,
		(*string)(nil), (*string)(nil), (*time.Time)(nil), created, created)
}

func TestAccountsDelete(t *testing.T) {
	id := ulid.MustParse("01HZ0000000000000000000009")

	t.Run("deletes", func(t *testing.T) {
		postgresEnv(t)
		deps, mock := mockPoolDeps(t)
		mock.ExpectQuery(`FROM accounts WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(accountRow(id))
		mock.ExpectExec(`DELETE FROM accounts`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		out, err := runAccounts(t, deps, "delete", id.String())
		require.NoError(t, err)
		assert.Contains(t, out, "Deleted account "+id.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account is not deleted", func(t *testing.T) {
		postgresEnv(t)
		deps, mock := mockPoolDeps(t)
		mock.ExpectQuery(`FROM accounts WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(pgx.ErrNoRows)

		_, err := runAccounts(t, deps, "delete", id.String())
		errutil.AssertCodedError(t, err, auth.CodeAccountNotFound, "account_id", id.String())
		assert.NoError(t, mock.ExpectationsWereMet(), "no DELETE is issued")
	})

	t.Run("lookup failure is reported", func(t *testing.T) {
		postgresEnv(t)
		deps, mock := mockPoolDeps(t)
		mock.ExpectQuery(`FROM accounts WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(assert.AnError)

		_, err := runAccounts(t, deps, "delete", id.String())
		require.ErrorIs(t, err, assert.AnError)
		assert.False(t, auth.IsDomainError(err))
		assert.NoError(t, mock.ExpectationsWereMet(), "no DELETE is issued")
	})

	t.Run("invalid id is rejected before connecting", func(t *testing.T) {
		postgresEnv(t)
		connected := false
		deps := &Deps{PoolFactory: func(context.Context, string) (Pool, error) {
			connected = true
			return nil, assert.AnError
		}}

		_, err := runAccounts(t, deps, "delete", "not-an-id")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_ACCOUNT_ID")
		assert.False(t, connected)
	})
}

func TestAccountsList(t *testing.T) {
	t.Run("memory storage starts empty", func(t *testing.T) {
		isolateEnv(t)
		t.Setenv(config.EnvName("database.driver"), config.DriverMemory)
		t.Setenv(config.EnvName("auth.jwt_secret"), testSecret)

		out, err := runAccounts(t, nil, "list", "--json")
		require.NoError(t, err)
		assert.Contains(t, out, "[]")
	})

	t.Run("unknown role", func(t *testing.T) {
		isolateEnv(t)
		t.Setenv(config.EnvName("database.driver"), config.DriverMemory)
		t.Setenv(config.EnvName("auth.jwt_secret"), testSecret)

		_, err := runAccounts(t, nil, "list", "--role", "superuser")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidInput)
	})

	t.Run("requires a valid configuration", func(t *testing.T) {
		isolateEnv(t)
		t.Setenv(config.EnvName("database.driver"), config.DriverMemory)

		_, err := runAccounts(t, nil, "list")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
}
