// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package mocks provides testify mocks of the auth package interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/portfolioapp/authcore/internal/auth"
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t cleanupT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// accountOrNil returns the *auth.Account at index i, allowing nil returns.
func accountOrNil(args mock.Arguments, i int) *auth.Account {
	v := args.Get(i)
	if v == nil {
		return nil
	}
	return v.(*auth.Account)
}

// MockAccountRepository is a mock of auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock that asserts its expectations on cleanup.
func NewMockAccountRepository(t cleanupT) *MockAccountRepository {
	m := &MockAccountRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	return accountOrNil(args, 0), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	return accountOrNil(args, 0), args.Error(1)
}

func (m *MockAccountRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*auth.Account, error) {
	args := m.Called(ctx, tokenHash)
	return accountOrNil(args, 0), args.Error(1)
}

func (m *MockAccountRepository) GetByResetToken(ctx context.Context, tokenHash string) (*auth.Account, error) {
	args := m.Called(ctx, tokenHash)
	return accountOrNil(args, 0), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccountRepository) List(ctx context.Context, filter auth.AccountFilter) ([]*auth.Account, error) {
	args := m.Called(ctx, filter)
	var out []*auth.Account
	if v := args.Get(0); v != nil {
		out = v.([]*auth.Account)
	}
	return out, args.Error(1)
}

func (m *MockAccountRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t cleanupT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	register(&m.Mock, t)
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) bool {
	return m.Called(password, hash).Bool(0)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockTokenIssuer is a mock of auth.TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

// NewMockTokenIssuer creates a mock that asserts its expectations on cleanup.
func NewMockTokenIssuer(t cleanupT) *MockTokenIssuer {
	m := &MockTokenIssuer{}
	register(&m.Mock, t)
	return m
}

func (m *MockTokenIssuer) Issue(email string, role auth.Role, extended bool) (auth.IssuedToken, error) {
	args := m.Called(email, role, extended)
	return args.Get(0).(auth.IssuedToken), args.Error(1)
}

func (m *MockTokenIssuer) Verify(token string) (*auth.SessionClaims, error) {
	args := m.Called(token)
	var claims *auth.SessionClaims
	if v := args.Get(0); v != nil {
		claims = v.(*auth.SessionClaims)
	}
	return claims, args.Error(1)
}

// MockNotifier is a mock of auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t cleanupT) *MockNotifier {
	m := &MockNotifier{}
	register(&m.Mock, t)
	return m
}

func (m *MockNotifier) NotifyVerification(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

func (m *MockNotifier) NotifyPasswordReset(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

func (m *MockNotifier) NotifyWelcome(ctx context.Context, email, fullName string) error {
	return m.Called(ctx, email, fullName).Error(0)
}

// MockTokenGenerator is a mock of auth.TokenGenerator.
type MockTokenGenerator struct {
	mock.Mock
}

// NewMockTokenGenerator creates a mock that asserts its expectations on cleanup.
func NewMockTokenGenerator(t cleanupT) *MockTokenGenerator {
	m := &MockTokenGenerator{}
	register(&m.Mock, t)
	return m
}

func (m *MockTokenGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

var (
	_ auth.AccountRepository = (*MockAccountRepository)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.TokenIssuer       = (*MockTokenIssuer)(nil)
	_ auth.Notifier          = (*MockNotifier)(nil)
	_ auth.TokenGenerator    = (*MockTokenGenerator)(nil)
)
