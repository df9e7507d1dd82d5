// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package postgres implements auth.AccountRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool used by the repository.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const selectAccount = `
	SELECT id, email, password_hash, verified, verification_code_hash,
	       created_at, updated_at
	FROM accounts`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
// Email uniqueness is enforced by the accounts_email_key constraint.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, password_hash, verified, verification_code_hash,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.ID.String(),
		account.Email,
		account.PasswordHash,
		account.Verified,
		account.VerificationCodeHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", account.Email).
				Wrap(auth.ErrEmailTaken)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by identity.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, selectAccount+` WHERE id = $1`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by its exact email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, selectAccount+` WHERE email = $1`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// Update saves all mutable fields of an existing account.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			password_hash = $3,
			verified = $4,
			verification_code_hash = $5,
			updated_at = $6
		WHERE id = $1
	`,
		account.ID.String(),
		account.Email,
		account.PasswordHash,
		account.Verified,
		account.VerificationCodeHash,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", account.Email).
				Wrap(auth.ErrEmailTaken)
		}
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Ping checks database connectivity.
func (r *AccountRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return oops.Code("ACCOUNT_STORE_UNAVAILABLE").
			With("operation", "ping").
			Wrap(err)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr     string
		account   auth.Account
		codeHash  *string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&idStr,
		&account.Email,
		&account.PasswordHash,
		&account.Verified,
		&codeHash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	account.ID = id
	account.VerificationCodeHash = codeHash
	account.CreatedAt = createdAt
	account.UpdatedAt = updatedAt
	return &account, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
