// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error whose deepest code is code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err carries key=value in its oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertClientError asserts that err has code and that its message, the text
// returned to API clients, is exactly message with no wrapped detail.
func AssertClientError(t *testing.T, err error, code, message string) {
	t.Helper()
	require.Error(t, err)
	AssertErrorCode(t, err, code)
	assert.Equal(t, message, err.Error(), "client-facing message")
}
