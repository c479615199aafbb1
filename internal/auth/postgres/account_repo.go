// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package postgres implements auth.AccountRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/portfolioapp/authcore/internal/auth"
)

// emailIndex is the unique index guarding normalized emails.
const emailIndex = "idx_accounts_email_lower"

const accountColumns = `id, email, full_name, password_hash, role, enabled,
		       verification_token_hash, reset_token_hash, reset_token_expiry,
		       created_at, updated_at`

// poolIface is the subset of *pgxpool.Pool used here; pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, full_name, password_hash, role, enabled,
			verification_token_hash, reset_token_hash, reset_token_expiry,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		account.ID.String(),
		auth.NormalizeEmail(account.Email),
		account.FullName,
		account.PasswordHash,
		string(account.Role),
		account.Enabled,
		account.VerificationTokenHash,
		account.ResetTokenHash,
		account.ResetTokenExpiry,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isEmailConflict(err) {
			return oops.Code("ACCOUNT_CREATE_FAILED").
				With("email", account.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())
	return r.getOne(row, "get account by id", "id", id.String())
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`,
		auth.NormalizeEmail(email))
	return r.getOne(row, "get account by email", "email", email)
}

// GetByVerificationToken retrieves the account holding the token digest.
func (r *AccountRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE verification_token_hash = $1`, tokenHash)
	return r.getOne(row, "get account by verification token", "", "")
}

// GetByResetToken retrieves the account holding the reset token digest.
func (r *AccountRepository) GetByResetToken(ctx context.Context, tokenHash string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE reset_token_hash = $1`, tokenHash)
	return r.getOne(row, "get account by reset token", "", "")
}

func (r *AccountRepository) getOne(row pgx.Row, operation, key, value string) (*auth.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		e := oops.Code("ACCOUNT_NOT_FOUND")
		if key != "" {
			e = e.With(key, value)
		}
		return nil, e.Wrap(auth.ErrNotFound)
	}
	if err != nil {
		e := oops.Code("ACCOUNT_QUERY_FAILED").With("operation", operation)
		if key != "" {
			e = e.With(key, value)
		}
		return nil, e.Wrap(err)
	}
	return account, nil
}

// Update writes all mutable fields of an account.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			full_name = $3,
			password_hash = $4,
			role = $5,
			enabled = $6,
			verification_token_hash = $7,
			reset_token_hash = $8,
			reset_token_expiry = $9,
			updated_at = $10
		WHERE id = $1
	`,
		account.ID.String(),
		auth.NormalizeEmail(account.Email),
		account.FullName,
		account.PasswordHash,
		string(account.Role),
		account.Enabled,
		account.VerificationTokenHash,
		account.ResetTokenHash,
		account.ResetTokenExpiry,
		account.UpdatedAt,
	)
	if err != nil {
		if isEmailConflict(err) {
			return oops.Code("ACCOUNT_UPDATE_FAILED").
				With("email", account.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// List returns accounts ordered by creation time.
func (r *AccountRepository) List(ctx context.Context, filter auth.AccountFilter) ([]*auth.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at, id
	`, string(filter.Role))
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, oops.With("operation", "list accounts").Wrap(err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "iterate accounts").
			Wrap(err)
	}
	return accounts, nil
}

// Count returns the number of accounts.
func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_FAILED").
			With("operation", "count accounts").
			Wrap(err)
	}
	return n, nil
}

// scanAccount scans one row. pgx.ErrNoRows is returned unwrapped.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr            string
		role             string
		account          auth.Account
		verificationHash *string
		resetHash        *string
		resetExpiry      *time.Time
	)

	err := row.Scan(
		&idStr,
		&account.Email,
		&account.FullName,
		&account.PasswordHash,
		&role,
		&account.Enabled,
		&verificationHash,
		&resetHash,
		&resetExpiry,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add context
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	account.ID = id
	account.Role = auth.Role(role)
	account.VerificationTokenHash = verificationHash
	account.ResetTokenHash = resetHash
	account.ResetTokenExpiry = resetExpiry
	return &account, nil
}

func isEmailConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == emailIndex
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
