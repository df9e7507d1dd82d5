// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration defaults.
const (
	DefaultSessionTokenTTL = time.Hour
	DefaultResetTokenTTL   = 15 * time.Minute
	DefaultTokenIssuer     = "authkeep"
	MinTokenSecretLength   = 32
)

// Purpose scopes what a token may be used for.
type Purpose string

// Token purposes.
const (
	PurposeSession       Purpose = "session"
	PurposePasswordReset Purpose = "password_reset"
)

// Claims is the identity data carried by a token.
type Claims struct {
	Subject   ulid.ULID
	Email     string
	Purpose   Purpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec creates and checks signed, time-limited bearer tokens.
type TokenCodec interface {
	// Issue signs the claims. IssuedAt and ExpiresAt are set by the codec.
	Issue(claims Claims) (string, error)

	// Validate checks signature, expiry and purpose and returns the claims.
	// Failures carry the CodeInvalidToken code.
	Validate(token string, purpose Purpose) (*Claims, error)
}

// TokenConfig configures a JWTCodec.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

// JWTCodec implements TokenCodec with HS256 JSON Web Tokens.
type JWTCodec struct {
	secret []byte
	issuer string
	ttls   map[Purpose]time.Duration
	now    func() time.Time
}

// JWTCodecOption configures optional JWTCodec behaviour.
type JWTCodecOption func(*JWTCodec)

// WithTokenClock overrides the codec's time source.
func WithTokenClock(now func() time.Time) JWTCodecOption {
	return func(c *JWTCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewJWTCodec creates a JWTCodec. Zero TTLs and issuer fall back to defaults.
func NewJWTCodec(cfg TokenConfig, opts ...JWTCodecOption) (*JWTCodec, error) {
	if len(cfg.Secret) < MinTokenSecretLength {
		return nil, oops.Code("AUTH_TOKEN_CONFIG_INVALID").
			With("min_length", MinTokenSecretLength).
			Errorf("token secret must be at least %d bytes", MinTokenSecretLength)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultTokenIssuer
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTokenTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTokenTTL
	}

	c := &JWTCodec{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: cfg.Issuer,
		ttls: map[Purpose]time.Duration{
			PurposeSession:       cfg.SessionTTL,
			PurposePasswordReset: cfg.ResetTTL,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// tokenClaims shadows the registered iat and exp claims with nanosecond
// precision dates so the validity window ends exactly TTL after issuance.
type tokenClaims struct {
	Email     string       `json:"email"`
	Purpose   Purpose      `json:"purpose"`
	IssuedAt  *numericDate `json:"iat,omitempty"`
	ExpiresAt *numericDate `json:"exp,omitempty"`
	jwt.RegisteredClaims
}

func (c tokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return c.ExpiresAt.numeric(), nil
}

func (c tokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return c.IssuedAt.numeric(), nil
}

// numericDate is a JWT NumericDate that keeps its fractional seconds.
// jwt.NumericDate truncates to jwt.TimePrecision, a package global.
type numericDate struct {
	time.Time
}

func newNumericDate(t time.Time) *numericDate {
	return &numericDate{t.Round(0)}
}

func (d *numericDate) numeric() *jwt.NumericDate {
	if d == nil {
		return nil
	}
	return &jwt.NumericDate{Time: d.Time}
}

func (d numericDate) MarshalJSON() ([]byte, error) {
	if d.Nanosecond() == 0 {
		return strconv.AppendInt(nil, d.Unix(), 10), nil
	}
	frac := strings.TrimRight(fmt.Sprintf("%09d", d.Nanosecond()), "0")
	return fmt.Appendf(nil, "%d.%s", d.Unix(), frac), nil
}

// UnmarshalJSON parses seconds since the epoch with up to nine fractional
// digits without going through float64.
func (d *numericDate) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	secPart, fracPart, _ := strings.Cut(n.String(), ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric date %q: %w", n, err)
	}
	var nsec uint64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		nsec, err = strconv.ParseUint(fracPart+strings.Repeat("0", 9-len(fracPart)), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric date %q: %w", n, err)
		}
	}
	d.Time = time.Unix(sec, int64(nsec))
	return nil
}

// Issue signs the claims with the server key.
func (c *JWTCodec) Issue(claims Claims) (string, error) {
	ttl, ok := c.ttls[claims.Purpose]
	if !ok {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("purpose", claims.Purpose).
			Errorf("unknown token purpose")
	}
	if claims.Subject.Compare(ulid.ULID{}) == 0 {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").Errorf("token subject cannot be zero")
	}

	now := c.now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email:     claims.Email,
		Purpose:   claims.Purpose,
		IssuedAt:  newNumericDate(now),
		ExpiresAt: newNumericDate(now.Add(ttl)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  c.issuer,
			Subject: claims.Subject.String(),
			ID:      ulid.Make().String(),
		},
	}).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("operation", "sign token").
			Wrap(err)
	}
	return signed, nil
}

// Validate checks the token and returns its claims.
// A token issued at T is valid on [T, T+TTL), to the nanosecond.
func (c *JWTCodec) Validate(token string, purpose Purpose) (*Claims, error) {
	if token == "" {
		return nil, oops.Code(CodeInvalidToken).Errorf("token cannot be empty")
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).
			With("operation", "parse token").
			Wrap(err)
	}

	if tc.Purpose != purpose {
		return nil, oops.Code(CodeInvalidToken).
			With("expected_purpose", purpose).
			With("purpose", tc.Purpose).
			Errorf("token purpose mismatch")
	}

	subject, err := ulid.Parse(tc.Subject)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).
			With("operation", "parse subject").
			Wrap(err)
	}

	claims := &Claims{
		Subject: subject,
		Email:   tc.Email,
		Purpose: tc.Purpose,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}

// Compile-time interface check.
var _ TokenCodec = (*JWTCodec)(nil)
