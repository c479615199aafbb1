// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodeInvalidSessionToken is returned for any bearer token that fails verification.
const CodeInvalidSessionToken = "AUTH_INVALID_SESSION_TOKEN"

// Session token defaults.
const (
	DefaultSessionTTL         = 24 * time.Hour
	DefaultExtendedSessionTTL = 30 * 24 * time.Hour
	DefaultIssuer             = "authcore"

	// MinSecretLength is the minimum HS256 key size accepted.
	MinSecretLength = 32
)

// IssuedToken is a signed bearer token and its absolute expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// SessionClaims is the identity bound into a bearer token.
type SessionClaims struct {
	Email     string
	Role      Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer creates and verifies signed session tokens.
type TokenIssuer interface {
	// Issue signs a token for the subject. extended selects the long lifetime.
	Issue(email string, role Role, extended bool) (IssuedToken, error)

	// Verify checks signature and expiry. Any failure is reported as
	// AUTH_INVALID_SESSION_TOKEN.
	Verify(token string) (*SessionClaims, error)
}

// JWTIssuerConfig is the immutable configuration of a JWTIssuer.
type JWTIssuerConfig struct {
	Secret      []byte
	Issuer      string
	TTL         time.Duration
	ExtendedTTL time.Duration
	Clock       Clock
}

// JWTIssuer implements TokenIssuer with HS256 JWTs.
type JWTIssuer struct {
	secret      []byte
	issuer      string
	ttl         time.Duration
	extendedTTL time.Duration
	clock       Clock
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// NewJWTIssuer validates cfg and creates a JWTIssuer.
// Zero TTLs, issuer and clock fall back to the package defaults.
func NewJWTIssuer(cfg JWTIssuerConfig) (*JWTIssuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("AUTH_ISSUER_INVALID_SECRET").
			With("min_length", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}

	iss := &JWTIssuer{
		secret:      append([]byte(nil), cfg.Secret...),
		issuer:      cfg.Issuer,
		ttl:         cfg.TTL,
		extendedTTL: cfg.ExtendedTTL,
		clock:       cfg.Clock,
	}
	if iss.issuer == "" {
		iss.issuer = DefaultIssuer
	}
	if iss.ttl <= 0 {
		iss.ttl = DefaultSessionTTL
	}
	if iss.extendedTTL <= 0 {
		iss.extendedTTL = DefaultExtendedSessionTTL
	}
	if iss.clock == nil {
		iss.clock = SystemClock{}
	}
	if iss.extendedTTL <= iss.ttl {
		return nil, oops.Code("AUTH_ISSUER_INVALID_TTL").
			With("ttl", iss.ttl.String()).
			With("extended_ttl", iss.extendedTTL.String()).
			Errorf("extended session lifetime must exceed the default lifetime")
	}
	return iss, nil
}

// Issue signs a token binding email and role.
func (i *JWTIssuer) Issue(email string, role Role, extended bool) (IssuedToken, error) {
	now := i.clock.Now()
	ttl := i.ttl
	if extended {
		ttl = i.extendedTTL
	}
	expiresAt := now.Add(ttl)

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   email,
			ID:        ulid.Make().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: string(role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return IssuedToken{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").
			With("operation", "sign session token").
			Wrap(err)
	}

	// NumericDate has second precision; report what the token actually says.
	return IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.UTC()}, nil
}

// Verify parses and validates a token.
func (i *JWTIssuer) Verify(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, oops.Code(CodeInvalidSessionToken).Errorf("session token cannot be empty")
	}

	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidSessionToken).Wrap(err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, oops.Code(CodeInvalidSessionToken).Errorf("invalid session token")
	}

	if strings.TrimSpace(claims.Role) == "" {
		return nil, oops.Code(CodeInvalidSessionToken).Errorf("session token carries no role")
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, oops.Code(CodeInvalidSessionToken).
			With("role", claims.Role).
			Errorf("session token carries an unknown role")
	}

	out := &SessionClaims{
		Email:     claims.Subject,
		Role:      role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.UTC()
	}
	return out, nil
}

// Compile-time interface check.
var _ TokenIssuer = (*JWTIssuer)(nil)
