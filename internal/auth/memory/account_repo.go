// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package memory provides an in-process AccountRepository for development
// and tests. Data is lost when the process exits.
package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
)

// AccountRepository implements auth.AccountRepository with maps guarded by a mutex.
// Accounts are copied on the way in and out, so callers never share state.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.Account
	byEmail map[string]ulid.ULID
}

// NewAccountRepository creates an empty AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[ulid.ULID]*auth.Account),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new account.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[account.Email]; taken {
		return oops.Code("ACCOUNT_EMAIL_TAKEN").
			With("email", account.Email).
			Wrap(auth.ErrEmailTaken)
	}
	if _, exists := r.byID[account.ID]; exists {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("id", account.ID.String()).
			Errorf("account id already exists")
	}

	r.byID[account.ID] = clone(account)
	r.byEmail[account.Email] = account.ID
	return nil
}

// GetByID retrieves an account by identity.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return clone(account), nil
}

// GetByEmail retrieves an account by its exact email.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	return clone(r.byID[id]), nil
}

// Update saves all mutable fields of an existing account.
func (r *AccountRepository) Update(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	if current.Email != account.Email {
		if _, taken := r.byEmail[account.Email]; taken {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", account.Email).
				Wrap(auth.ErrEmailTaken)
		}
		delete(r.byEmail, current.Email)
		r.byEmail[account.Email] = account.ID
	}

	updated := clone(account)
	updated.CreatedAt = current.CreatedAt
	r.byID[account.ID] = updated
	return nil
}

// Ping always succeeds; it lets the memory store stand in for a database
// in readiness checks.
func (r *AccountRepository) Ping(context.Context) error {
	return nil
}

func clone(a *auth.Account) *auth.Account {
	c := *a
	if a.VerificationCodeHash != nil {
		h := *a.VerificationCodeHash
		c.VerificationCodeHash = &h
	}
	return &c
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
