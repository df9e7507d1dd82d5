// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account is the only persisted entity: one per email address.
type Account struct {
	ID                   ulid.ULID
	Email                string
	PasswordHash         string
	Verified             bool
	VerificationCodeHash *string // nil when no code is pending
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewAccount creates a validated, unverified Account with a new identity.
func NewAccount(email, passwordHash string) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Account{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasPendingVerification reports whether a verification code is outstanding.
func (a *Account) HasPendingVerification() bool {
	return a.VerificationCodeHash != nil && *a.VerificationCodeHash != ""
}

// SetVerificationCodeHash records the hash of a newly issued code.
func (a *Account) SetVerificationCodeHash(hash string, now time.Time) {
	a.VerificationCodeHash = &hash
	a.UpdatedAt = now
}

// MarkVerified flags the email as verified and drops the pending code.
func (a *Account) MarkVerified(now time.Time) {
	a.Verified = true
	a.VerificationCodeHash = nil
	a.UpdatedAt = now
}

// SetPasswordHash replaces the stored password hash.
func (a *Account) SetPasswordHash(hash string, now time.Time) {
	a.PasswordHash = hash
	a.UpdatedAt = now
}

// ValidateEmail checks that email is a bare RFC 5322 address.
// Display names ("Ann <ann@example.com>") are rejected.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return invalidInput("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code(CodeInvalidInput).
			With("email", email).
			Errorf("Invalid email address")
	}
	return nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account.
	// Returns an error wrapping ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by identity.
	// Returns an error wrapping ErrNotFound if no account has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by its exact email.
	// Returns an error wrapping ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Update saves all mutable fields of an existing account.
	Update(ctx context.Context, account *Account) error
}
