// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/pkg/errutil"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestRandomCodeGenerator_Generate(t *testing.T) {
	gen := NewRandomCodeGenerator()

	seen := make(map[string]struct{})
	for range 200 {
		code, err := gen.Generate()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, VerificationCodeMin)
		assert.LessOrEqual(t, n, VerificationCodeMax)
		seen[code] = struct{}{}
	}
	// 200 draws from 900000 values; collisions are possible but rare.
	assert.Greater(t, len(seen), 190)
}

func TestRandomCodeGenerator_SourceFailure(t *testing.T) {
	gen := &RandomCodeGenerator{source: failingReader{}}

	code, err := gen.Generate()
	require.Error(t, err)
	assert.Empty(t, code)
	errutil.AssertErrorCode(t, err, "AUTH_CODE_GENERATE_FAILED")
}
