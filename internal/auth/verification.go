// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"

	"github.com/samber/oops"
)

// Verification codes are six digits, drawn uniformly from this inclusive range.
const (
	VerificationCodeMin = 100000
	VerificationCodeMax = 999999
)

// CodeGenerator produces one-time email verification codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws codes from a cryptographic random source.
type RandomCodeGenerator struct {
	source io.Reader
}

// NewRandomCodeGenerator creates a generator backed by crypto/rand.
func NewRandomCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{source: rand.Reader}
}

// Generate returns a 6-digit numeric code.
func (g *RandomCodeGenerator) Generate() (string, error) {
	span := big.NewInt(VerificationCodeMax - VerificationCodeMin + 1)
	n, err := rand.Int(g.source, span)
	if err != nil {
		return "", oops.Code("AUTH_CODE_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}
	return strconv.FormatInt(n.Int64()+VerificationCodeMin, 10), nil
}

// Compile-time interface check.
var _ CodeGenerator = (*RandomCodeGenerator)(nil)
