// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/portfolioapp/authcore/internal/observability"
	"github.com/portfolioapp/authcore/pkg/errutil"
)

var tracer = otel.Tracer("authcore/auth")

// Service defaults.
const (
	DefaultResetTTL      = time.Hour
	MinPasswordLength    = 6
	DefaultOAuthFullName = "OAuth User"
)

// dummyPasswordHash is verified against when no account matches so a failed
// login costs the same whether or not the email exists. It never matches.
//
//nolint:gosec // G101: not a credential
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// VerifyResult distinguishes a fresh verification from a repeated one.
type VerifyResult int

// Verification outcomes.
const (
	VerifyResultVerified VerifyResult = iota + 1
	VerifyResultAlreadyVerified
)

// RegisterRequest holds the inputs of a local registration.
type RegisterRequest struct {
	Email    string
	Password string
	FullName string
	// Role defaults to RoleUser when empty.
	Role Role
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *Account
}

// UpdateAccountRequest lists the fields an administrator may change.
// Nil fields are left untouched.
type UpdateAccountRequest struct {
	Email    *string
	FullName *string
	Password *string
	Role     *Role
}

// Service implements registration, login, verification, password reset and
// account administration.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	issuer   TokenIssuer
	tokens   TokenGenerator
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
	resetTTL time.Duration
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithNotifier sets the notification sink. Defaults to NopNotifier.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger for best-effort failures.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithTokenGenerator overrides the single-use token source.
func WithTokenGenerator(g TokenGenerator) ServiceOption {
	return func(s *Service) { s.tokens = g }
}

// WithResetTTL sets the lifetime of password reset tokens.
func WithResetTTL(d time.Duration) ServiceOption {
	return func(s *Service) { s.resetTTL = d }
}

// NewService creates a Service. The repository, hasher and issuer are required.
func NewService(accounts AccountRepository, hasher PasswordHasher, issuer TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Errorf("token issuer is required")
	}

	s := &Service{
		accounts: accounts,
		hasher:   hasher,
		issuer:   issuer,
		tokens:   NewRandomTokenGenerator(),
		notifier: NopNotifier{},
		clock:    SystemClock{},
		logger:   slog.Default(),
		resetTTL: DefaultResetTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.notifier == nil:
		return nil, oops.Errorf("notifier is required")
	case s.clock == nil:
		return nil, oops.Errorf("clock is required")
	case s.logger == nil:
		return nil, oops.Errorf("logger is required")
	case s.tokens == nil:
		return nil, oops.Errorf("token generator is required")
	case s.resetTTL <= 0:
		return nil, oops.With("reset_ttl", s.resetTTL.String()).Errorf("reset token lifetime must be positive")
	}
	return s, nil
}

// Register creates a local account awaiting email verification and submits
// the verification notification.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (acct *Account, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { finish(span, "register", err) }()

	email := NormalizeEmail(req.Email)
	if err = validateEmail(email); err != nil {
		return nil, err
	}
	if err = validatePassword(req.Password); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if role, err = ParseRole(string(role)); err != nil {
		return nil, err
	}

	if _, err = s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, duplicateAccount(email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, storeError("get account by email", err)
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}
	token, err := s.tokens.Generate()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	acct = &Account{
		ID:           ulid.Make(),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = acct.IssueVerification(HashToken(token), now); err != nil {
		return nil, err
	}

	if err = s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, duplicateAccount(email)
		}
		return nil, storeError("create account", err)
	}
	span.SetAttributes(attribute.String("account.id", acct.ID.String()))

	if notifyErr := s.notifier.NotifyVerification(ctx, email, token); notifyErr != nil {
		s.logBestEffort(ctx, "notify_verification", acct.ID, notifyErr)
	}
	return acct, nil
}

// Login checks credentials and issues a session token. extended selects the
// long "remember me" lifetime.
func (s *Service) Login(ctx context.Context, email, password string, extended bool) (res *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.login",
		trace.WithAttributes(attribute.Bool("auth.extended", extended)))
	defer func() { finish(span, "login", err) }()

	email = NormalizeEmail(email)
	acct, lookupErr := s.accounts.GetByEmail(ctx, email)
	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		targetHash = acct.PasswordHash
	case errors.Is(lookupErr, ErrNotFound):
		acct = nil
	default:
		return nil, storeError("get account by email", lookupErr)
	}

	// Always verify so an unknown email costs the same as a wrong password.
	valid := s.hasher.Verify(password, targetHash)

	if acct == nil {
		return nil, invalidCredentials()
	}
	if !acct.Enabled {
		return nil, oops.Code(CodeAccountNotVerified).
			With("account_id", acct.ID.String()).
			Errorf("account email has not been verified")
	}
	if !valid {
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(acct.PasswordHash) {
		s.upgradeHash(ctx, acct, password)
	}

	issued, err := s.issuer.Issue(acct.Email, acct.Role, extended)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session token").
			With("account_id", acct.ID.String()).
			Wrap(err)
	}
	span.SetAttributes(attribute.String("account.id", acct.ID.String()))

	return &LoginResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, Account: acct}, nil
}

func (s *Service) upgradeHash(ctx context.Context, acct *Account, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logBestEffort(ctx, "upgrade_password_hash", acct.ID, err)
		return
	}
	previous := acct.PasswordHash
	acct.PasswordHash = newHash
	acct.UpdatedAt = s.clock.Now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		acct.PasswordHash = previous
		s.logBestEffort(ctx, "upgrade_password_hash", acct.ID, err)
	}
}

// VerifyEmail consumes a verification token and activates its account.
func (s *Service) VerifyEmail(ctx context.Context, token string) (result VerifyResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.verify_email")
	defer func() { finish(span, "verify_email", err) }()

	if token == "" {
		return 0, invalidToken()
	}
	acct, err := s.accounts.GetByVerificationToken(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, invalidToken()
		}
		return 0, storeError("get account by verification token", err)
	}
	if acct.Enabled {
		return VerifyResultAlreadyVerified, nil
	}

	if err = acct.ConsumeVerification(s.clock.Now()); err != nil {
		return 0, err
	}
	if err = s.accounts.Update(ctx, acct); err != nil {
		return 0, storeError("update account", err)
	}

	if notifyErr := s.notifier.NotifyWelcome(ctx, acct.Email, acct.FullName); notifyErr != nil {
		s.logBestEffort(ctx, "notify_welcome", acct.ID, notifyErr)
	}
	return VerifyResultVerified, nil
}

// InitiatePasswordReset issues a reset token and submits the reset
// notification. Unknown emails are reported as AUTH_ACCOUNT_NOT_FOUND.
func (s *Service) InitiatePasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.initiate_password_reset")
	defer func() { finish(span, "initiate_password_reset", err) }()

	email = NormalizeEmail(email)
	acct, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if err = acct.IssueReset(HashToken(token), now.Add(s.resetTTL), now); err != nil {
		return err
	}
	if err = s.accounts.Update(ctx, acct); err != nil {
		return storeError("update account", err)
	}

	if notifyErr := s.notifier.NotifyPasswordReset(ctx, acct.Email, token); notifyErr != nil {
		s.logBestEffort(ctx, "notify_password_reset", acct.ID, notifyErr)
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the account password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.reset_password")
	defer func() { finish(span, "reset_password", err) }()

	if err = validatePassword(newPassword); err != nil {
		return err
	}
	if token == "" {
		return invalidToken()
	}

	acct, err := s.accounts.GetByResetToken(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidToken()
		}
		return storeError("get account by reset token", err)
	}

	// Check expiry before paying for a hash.
	now := s.clock.Now()
	if acct.ResetTokenExpiry != nil && !acct.ResetTokenExpiry.After(now) {
		return oops.Code(CodeTokenExpired).
			With("account_id", acct.ID.String()).
			Errorf("password reset token has expired")
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").With("operation", "hash password").Wrap(err)
	}
	if err = acct.ConsumeReset(newHash, now); err != nil {
		return err
	}
	if err = s.accounts.Update(ctx, acct); err != nil {
		return storeError("update account", err)
	}
	return nil
}

// ResendVerification replaces the verification token of an unverified
// account and submits a new notification.
func (s *Service) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.resend_verification")
	defer func() { finish(span, "resend_verification", err) }()

	email = NormalizeEmail(email)
	acct, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return err
	}
	if err = acct.IssueVerification(HashToken(token), s.clock.Now()); err != nil {
		return err
	}
	if err = s.accounts.Update(ctx, acct); err != nil {
		return storeError("update account", err)
	}

	if notifyErr := s.notifier.NotifyVerification(ctx, acct.Email, token); notifyErr != nil {
		s.logBestEffort(ctx, "notify_verification", acct.ID, notifyErr)
	}
	return nil
}

// RegisterOrLinkOAuthAccount returns the account owning email, or creates an
// active account for an externally verified identity. Existing accounts are
// returned unchanged.
func (s *Service) RegisterOrLinkOAuthAccount(ctx context.Context, email, fullName string) (acct *Account, err error) {
	ctx, span := tracer.Start(ctx, "auth.oauth_link")
	defer func() { finish(span, "oauth_link", err) }()

	email = NormalizeEmail(email)
	if err = validateEmail(email); err != nil {
		return nil, err
	}

	acct, err = s.accounts.GetByEmail(ctx, email)
	if err == nil {
		span.SetAttributes(attribute.Bool("auth.linked", true))
		return acct, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, storeError("get account by email", err)
	}

	// The credential is never disclosed, so the account can only sign in
	// through the upstream provider or after a password reset.
	secret, err := s.tokens.Generate()
	if err != nil {
		return nil, err
	}
	passwordHash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, oops.Code("AUTH_OAUTH_LINK_FAILED").With("operation", "hash password").Wrap(err)
	}

	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		fullName = DefaultOAuthFullName
	}
	now := s.clock.Now()
	acct = &Account{
		ID:           ulid.Make(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.accounts.Create(ctx, acct); err != nil {
		if !errors.Is(err, ErrDuplicateEmail) {
			return nil, storeError("create account", err)
		}
		// Lost a concurrent insert; link to the winner.
		winner, getErr := s.accounts.GetByEmail(ctx, email)
		if getErr != nil {
			return nil, storeError("get account by email", getErr)
		}
		return winner, nil
	}
	return acct, nil
}

// GetAccount returns the account with the given ID.
func (s *Service) GetAccount(ctx context.Context, id ulid.ULID) (*Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, accountNotFound("account_id", id.String())
		}
		return nil, storeError("get account by id", err)
	}
	return acct, nil
}

// AccountExists reports whether an account with the given ID exists.
func (s *Service) AccountExists(ctx context.Context, id ulid.ULID) (bool, error) {
	_, err := s.GetAccount(ctx, id)
	if err == nil {
		return true, nil
	}
	if ErrorCode(err) == CodeAccountNotFound {
		return false, nil
	}
	return false, err
}

// ListAccounts returns every account ordered by creation time.
func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	accounts, err := s.accounts.List(ctx, AccountFilter{})
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	return accounts, nil
}

// ListAccountsByRole returns the accounts holding role.
func (s *Service) ListAccountsByRole(ctx context.Context, role Role) ([]*Account, error) {
	parsed, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.List(ctx, AccountFilter{Role: parsed})
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	return accounts, nil
}

// CountAccounts returns the total number of accounts.
func (s *Service) CountAccounts(ctx context.Context) (int64, error) {
	n, err := s.accounts.Count(ctx)
	if err != nil {
		return 0, storeError("count accounts", err)
	}
	return n, nil
}

// UpdateAccount applies an administrative change to an account.
func (s *Service) UpdateAccount(ctx context.Context, id ulid.ULID, req UpdateAccountRequest) (acct *Account, err error) {
	ctx, span := tracer.Start(ctx, "auth.update_account",
		trace.WithAttributes(attribute.String("account.id", id.String())))
	defer func() { finish(span, "update_account", err) }()

	acct, err = s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := NormalizeEmail(*req.Email)
		if err = validateEmail(email); err != nil {
			return nil, err
		}
		if email != acct.Email {
			if _, getErr := s.accounts.GetByEmail(ctx, email); getErr == nil {
				return nil, duplicateAccount(email)
			} else if !errors.Is(getErr, ErrNotFound) {
				return nil, storeError("get account by email", getErr)
			}
			acct.Email = email
		}
	}
	if req.FullName != nil {
		acct.FullName = strings.TrimSpace(*req.FullName)
	}
	// An empty password leaves the current hash in place.
	if req.Password != nil && *req.Password != "" {
		if err = validatePassword(*req.Password); err != nil {
			return nil, err
		}
		var passwordHash string
		if passwordHash, err = s.hasher.Hash(*req.Password); err != nil {
			return nil, oops.Code("AUTH_UPDATE_FAILED").With("operation", "hash password").Wrap(err)
		}
		acct.PasswordHash = passwordHash
	}
	if req.Role != nil {
		var role Role
		if role, err = ParseRole(string(*req.Role)); err != nil {
			return nil, err
		}
		acct.Role = role
	}
	acct.UpdatedAt = s.clock.Now()

	if err = s.accounts.Update(ctx, acct); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return nil, duplicateAccount(acct.Email)
		case errors.Is(err, ErrNotFound):
			return nil, accountNotFound("account_id", id.String())
		default:
			return nil, storeError("update account", err)
		}
	}
	return acct, nil
}

// DeleteAccount removes an account.
func (s *Service) DeleteAccount(ctx context.Context, id ulid.ULID) (err error) {
	ctx, span := tracer.Start(ctx, "auth.delete_account",
		trace.WithAttributes(attribute.String("account.id", id.String())))
	defer func() { finish(span, "delete_account", err) }()

	if err = s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return accountNotFound("account_id", id.String())
		}
		return storeError("delete account", err)
	}
	return nil
}

func (s *Service) lookupByEmail(ctx context.Context, email string) (*Account, error) {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, accountNotFound("email", email)
		}
		return nil, storeError("get account by email", err)
	}
	return acct, nil
}

func (s *Service) logBestEffort(ctx context.Context, operation string, id ulid.ULID, err error) {
	errutil.LogErrorContext(ctx, s.logger, slog.LevelWarn, "best-effort operation failed", err,
		"operation", operation,
		"account_id", id.String(),
	)
}

// finish records the outcome of an operation on its span and in metrics.
func finish(span trace.Span, operation string, err error) {
	outcome := "success"
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome = "error"
		if IsDomainError(err) {
			outcome = strings.ToLower(strings.TrimPrefix(ErrorCode(err), "AUTH_"))
		}
	}
	observability.RecordAuthOperation(operation, outcome)
	span.End()
}

func validateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return oops.Code(CodeInvalidInput).With("field", "email").Errorf("a valid email address is required")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return oops.Code(CodeWeakPassword).
			With("min_length", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func duplicateAccount(email string) error {
	return oops.Code(CodeDuplicateAccount).With("email", email).Errorf("an account with this email already exists")
}

func accountNotFound(key, value string) error {
	return oops.Code(CodeAccountNotFound).With(key, value).Errorf("account not found")
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func invalidToken() error {
	return oops.Code(CodeInvalidOrExpiredToken).Errorf("invalid or expired token")
}
