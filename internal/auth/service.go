// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/notify"
	"github.com/authkeep/authkeep/pkg/errutil"
)

// DefaultMailFrom is the sender used when no WithMailFrom option is given.
const DefaultMailFrom = "no-reply@authkeep.local"

// Email subjects.
const (
	verificationSubject = "Email verification"
	resetSubject        = "Password reset"
)

// Notifier queues an email for delivery without waiting for it.
// Implementations must not report delivery failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

// Service implements the account workflows: registration, login, email
// verification and password reset.
type Service struct {
	accounts AccountRepository
	hasher   SecretHasher
	codes    CodeGenerator
	tokens   TokenCodec
	notifier Notifier

	logger               *slog.Logger
	requireVerifiedLogin bool
	mailFrom             string
	now                  func() time.Time
}

// ServiceOption configures optional Service behaviour.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequireVerifiedLogin rejects logins for accounts whose email is not verified.
func WithRequireVerifiedLogin(enabled bool) ServiceOption {
	return func(s *Service) {
		s.requireVerifiedLogin = enabled
	}
}

// WithClock overrides the time source used for account timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMailFrom sets the sender address of outgoing emails.
func WithMailFrom(from string) ServiceOption {
	return func(s *Service) {
		if from != "" {
			s.mailFrom = from
		}
	}
}

// NewService creates a new Service.
func NewService(
	accounts AccountRepository,
	hasher SecretHasher,
	codes CodeGenerator,
	tokens TokenCodec,
	notifier Notifier,
	opts ...ServiceOption,
) (*Service, error) {
	switch {
	case accounts == nil:
		return nil, oops.Errorf("account repository is required")
	case hasher == nil:
		return nil, oops.Errorf("secret hasher is required")
	case codes == nil:
		return nil, oops.Errorf("code generator is required")
	case tokens == nil:
		return nil, oops.Errorf("token codec is required")
	case notifier == nil:
		return nil, oops.Errorf("notifier is required")
	}

	s := &Service{
		accounts: accounts,
		hasher:   hasher,
		codes:    codes,
		tokens:   tokens,
		notifier: notifier,
		logger:   slog.New(slog.DiscardHandler),
		mailFrom: DefaultMailFrom,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an unverified account and emails it a verification code.
// The email is sent in the background; delivery failures never fail registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	_, err := s.accounts.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, emailTaken(in.Email)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(in.Email, passwordHash)
	if err != nil {
		return nil, err
	}
	now := s.now()
	account.CreatedAt = now

	code, err := s.codes.Generate()
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "generate verification code").
			Wrap(err)
	}
	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash verification code").
			Wrap(err)
	}
	account.SetVerificationCodeHash(codeHash, now)

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, emailTaken(in.Email)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	s.notifier.Notify(ctx, notify.Message{
		To:      account.Email,
		From:    s.mailFrom,
		Subject: verificationSubject,
		HTML:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong></p>", code),
	})

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID.String())
	return account, nil
}

// Login checks the credentials and returns a session token.
// Weak or legacy password hashes are upgraded on success; a failed upgrade is
// logged and does not fail the login.
func (s *Service) Login(ctx context.Context, in LoginInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	account, err := s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		return "", s.lookupError(err, "AUTH_LOGIN_FAILED", "User doesn't exist")
	}

	valid, err := s.hasher.Verify(in.Password, account.PasswordHash)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if !valid {
		return "", oops.Code(CodeInvalidCredentials).Errorf("Invalid credentials")
	}

	if s.requireVerifiedLogin && !account.Verified {
		return "", oops.Code(CodeEmailNotVerified).Errorf("Email not verified")
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.upgradePasswordHash(ctx, account, in.Password)
	}

	token, err := s.tokens.Issue(Claims{
		Subject: account.ID,
		Email:   account.Email,
		Purpose: PurposeSession,
	})
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return token, nil
}

func (s *Service) upgradePasswordHash(ctx context.Context, account *Account, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(s.logger, "password hash upgrade failed", err)
		return
	}
	account.SetPasswordHash(newHash, s.now())
	if err := s.accounts.Update(ctx, account); err != nil {
		errutil.LogError(s.logger, "password hash upgrade failed",
			oops.With("account_id", account.ID.String()).Wrap(err))
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "account_id", account.ID.String())
}

// VerifyEmail confirms the account's email with the code sent at registration.
// The pending code is cleared on success, so an account is verified at most once.
func (s *Service) VerifyEmail(ctx context.Context, in VerifyEmailInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		return s.lookupError(err, "AUTH_VERIFY_FAILED", "User doesn't exist")
	}
	if account.Verified {
		return oops.Code(CodeAlreadyVerified).Errorf("User already verified")
	}
	if !account.HasPendingVerification() {
		return oops.Code(CodeInvalidVerificationCode).Errorf("Invalid verification code")
	}

	valid, err := s.hasher.Verify(in.VerificationCode, *account.VerificationCodeHash)
	if err != nil {
		return oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "verify code").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if !valid {
		return oops.Code(CodeInvalidVerificationCode).Errorf("Invalid verification code")
	}

	account.MarkVerified(s.now())
	if err := s.accounts.Update(ctx, account); err != nil {
		return oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "update account").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "email verified", "account_id", account.ID.String())
	return nil
}

// ForgotPassword issues a password reset token for the account, emails it in
// the background and returns it.
func (s *Service) ForgotPassword(ctx context.Context, in ForgotPasswordInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	account, err := s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		return "", s.lookupError(err, "AUTH_FORGOT_PASSWORD_FAILED", "User doesn't exist")
	}

	token, err := s.tokens.Issue(Claims{
		Subject: account.ID,
		Email:   account.Email,
		Purpose: PurposePasswordReset,
	})
	if err != nil {
		return "", oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "issue reset token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	s.notifier.Notify(ctx, notify.Message{
		To:      account.Email,
		From:    s.mailFrom,
		Subject: resetSubject,
		HTML:    fmt.Sprintf("<p>Use this token to reset your password:</p><p><code>%s</code></p>", html.EscapeString(token)),
	})
	return token, nil
}

// ResetPassword replaces the password of the account named by a reset token.
// The account is not touched unless the token is valid.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	claims, err := s.tokens.Validate(in.Token, PurposePasswordReset)
	if err != nil {
		if KindOf(err) == KindInvalidToken {
			s.logger.DebugContext(ctx, "reset token rejected", "reason", err.Error())
			return oops.Code(CodeInvalidToken).Errorf("Invalid token")
		}
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "validate reset token").
			Wrap(err)
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		return s.lookupError(err, "AUTH_RESET_PASSWORD_FAILED", "Invalid token")
	}

	passwordHash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account.SetPasswordHash(passwordHash, s.now())
	if err := s.accounts.Update(ctx, account); err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "update account").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset", "account_id", account.ID.String())
	return nil
}

// lookupError maps a repository lookup failure. ErrNotFound becomes a
// not-found error carrying notFoundMsg; anything else is unexpected.
func (s *Service) lookupError(err error, failCode, notFoundMsg string) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeAccountNotFound).Errorf("%s", notFoundMsg)
	}
	return oops.Code(failCode).
		With("operation", "get account").
		Wrap(err)
}

func emailTaken(email string) error {
	return oops.Code(CodeEmailTaken).
		With("email", email).
		Errorf("User already exists")
}
