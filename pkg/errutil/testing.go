// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops fails the test immediately when err carries no oops metadata.
func requireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "want a coded error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts the deepest oops code in err's chain.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code())
}

// AssertErrorContext asserts that err's oops context holds key with value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	if assert.Contains(t, ctx, key) {
		assert.Equal(t, value, ctx[key], "context %q", key)
	}
}

// AssertCodedError asserts the code of err and any number of context
// key/value pairs, e.g. AssertCodedError(t, err, "AUTH_DUPLICATE_ACCOUNT",
// "email", "ann@example.com").
func AssertCodedError(t *testing.T, err error, code string, keyValues ...any) {
	t.Helper()
	require.Zero(t, len(keyValues)%2, "keyValues must come in pairs")

	oopsErr := requireOops(t, err)
	assert.Equal(t, code, oopsErr.Code())

	ctx := oopsErr.Context()
	for i := 0; i < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		require.True(t, ok, "context key at %d is %T, want string", i, keyValues[i])
		if assert.Contains(t, ctx, key) {
			assert.Equal(t, keyValues[i+1], ctx[key], "context %q", key)
		}
	}
}
