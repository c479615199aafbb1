// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package memory provides an in-process AccountRepository for development
// and tests. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/portfolioapp/authcore/internal/auth"
)

// AccountRepository is a mutex-guarded map of accounts. Uniqueness of the
// normalized email is enforced under the same lock as the write.
type AccountRepository struct {
	mu       sync.RWMutex
	byID     map[ulid.ULID]*auth.Account
	idByMail map[string]ulid.ULID
}

// NewAccountRepository creates an empty repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:     make(map[ulid.ULID]*auth.Account),
		idByMail: make(map[string]ulid.ULID),
	}
}

// Create stores a new account.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	email := auth.NormalizeEmail(account.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.idByMail[email]; ok {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("email", email).Wrap(auth.ErrDuplicateEmail)
	}
	if _, ok := r.byID[account.ID]; ok {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("id", account.ID.String()).Errorf("account id already exists")
	}

	stored := clone(account)
	stored.Email = email
	r.byID[account.ID] = stored
	r.idByMail[email] = account.ID
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.byID[id]; ok {
		return clone(a), nil
	}
	return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
}

// GetByEmail retrieves an account by email.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	email = auth.NormalizeEmail(email)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.idByMail[email]; ok {
		return clone(r.byID[id]), nil
	}
	return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
}

// GetByVerificationToken retrieves the account holding the token digest.
func (r *AccountRepository) GetByVerificationToken(_ context.Context, tokenHash string) (*auth.Account, error) {
	return r.find(func(a *auth.Account) bool {
		return a.VerificationTokenHash != nil && *a.VerificationTokenHash == tokenHash
	})
}

// GetByResetToken retrieves the account holding the reset token digest.
func (r *AccountRepository) GetByResetToken(_ context.Context, tokenHash string) (*auth.Account, error) {
	return r.find(func(a *auth.Account) bool {
		return a.ResetTokenHash != nil && *a.ResetTokenHash == tokenHash
	})
}

func (r *AccountRepository) find(match func(*auth.Account) bool) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byID {
		if match(a) {
			return clone(a), nil
		}
	}
	return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Update replaces the stored account.
func (r *AccountRepository) Update(_ context.Context, account *auth.Account) error {
	email := auth.NormalizeEmail(account.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", account.ID.String()).Wrap(auth.ErrNotFound)
	}
	if owner, taken := r.idByMail[email]; taken && owner != account.ID {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("email", email).Wrap(auth.ErrDuplicateEmail)
	}

	delete(r.idByMail, current.Email)
	stored := clone(account)
	stored.Email = email
	stored.CreatedAt = current.CreatedAt
	r.byID[account.ID] = stored
	r.idByMail[email] = account.ID
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.idByMail, a.Email)
	delete(r.byID, id)
	return nil
}

// List returns accounts ordered by creation time, then ID.
func (r *AccountRepository) List(_ context.Context, filter auth.AccountFilter) ([]*auth.Account, error) {
	r.mu.RLock()
	out := make([]*auth.Account, 0, len(r.byID))
	for _, a := range r.byID {
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		out = append(out, clone(a))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Compare(out[j].ID) < 0
	})
	return out, nil
}

// Count returns the number of stored accounts.
func (r *AccountRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

func clone(a *auth.Account) *auth.Account {
	c := *a
	if a.VerificationTokenHash != nil {
		v := *a.VerificationTokenHash
		c.VerificationTokenHash = &v
	}
	if a.ResetTokenHash != nil {
		v := *a.ResetTokenHash
		c.ResetTokenHash = &v
	}
	if a.ResetTokenExpiry != nil {
		v := *a.ResetTokenExpiry
		c.ResetTokenExpiry = &v
	}
	return &c
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
