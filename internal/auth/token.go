// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/samber/oops"
)

// SingleUseTokenBytes is the entropy of verification and reset tokens.
const SingleUseTokenBytes = 32 // 32 bytes = 64 hex chars

// TokenGenerator produces unguessable single-use tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokenGenerator draws tokens from crypto/rand.
type RandomTokenGenerator struct{}

// NewRandomTokenGenerator creates a new RandomTokenGenerator.
func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{}
}

// Generate returns a hex-encoded random token.
func (g *RandomTokenGenerator) Generate() (string, error) {
	tokenBytes := make([]byte, SingleUseTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SingleUseTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(tokenBytes), nil
}

// HashToken computes the SHA256 digest stored in place of a single-use token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
