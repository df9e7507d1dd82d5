// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package auth implements the account credential lifecycle for authkeep.
//
// # Domain Types
//
// Accounts should be created with NewAccount, which validates the email and
// password hash and assigns a fresh ULID identity. Direct struct
// initialization bypasses validation and may create invalid state.
//
// # Secrets
//
// Passwords and one-time verification codes are both secrets from the
// hasher's point of view: they are hashed with SecretHasher.Hash and only
// ever compared through SecretHasher.Verify. Bearer tokens are never stored;
// TokenCodec signs them and checks them statelessly.
//
// # Services
//
// Service orchestrates the workflows:
//   - Register - creates an account and mails a verification code
//   - Login - checks credentials and issues a session token
//   - VerifyEmail - consumes the pending verification code
//   - ForgotPassword - issues a password-reset token
//   - ResetPassword - replaces the password hash using a reset token
//
// Services are created with NewService, which rejects nil dependencies.
package auth
