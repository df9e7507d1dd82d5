// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/auth/memory"
	"github.com/authkeep/authkeep/internal/notify"
	"github.com/authkeep/authkeep/pkg/errutil"
)

// recordingNotifier keeps every message it is asked to send.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) last(t *testing.T) notify.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.messages)
	return n.messages[len(n.messages)-1]
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// tamper changes one character inside the token signature.
func tamper(token string) string {
	b := []byte(token)
	i := len(b) - 10
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

type flowFixture struct {
	svc      *auth.Service
	accounts *memory.AccountRepository
	codec    *auth.JWTCodec
	clock    *testClock
	notifier *recordingNotifier
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)
	accounts := memory.NewAccountRepository()
	notifier := &recordingNotifier{}

	svc, err := auth.NewService(accounts, newTestHasher(t), auth.NewRandomCodeGenerator(), codec, notifier,
		auth.WithClock(clock.Now))
	require.NoError(t, err)
	return &flowFixture{svc: svc, accounts: accounts, codec: codec, clock: clock, notifier: notifier}
}

func TestFlow_RegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)

	for _, email := range []string{"a@x.com", "b.c+tag@example.org"} {
		_, err := f.svc.Register(ctx, auth.RegisterInput{Email: email, Password: "p1"})
		require.NoError(t, err)

		token, err := f.svc.Login(ctx, auth.LoginInput{Email: email, Password: "p1"})
		require.NoError(t, err)

		claims, err := f.codec.Validate(token, auth.PurposeSession)
		require.NoError(t, err)
		assert.Equal(t, email, claims.Email)
	}
}

func TestFlow_VerifyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)

	_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)
	code := codePattern.FindString(f.notifier.last(t).HTML)
	require.NotEmpty(t, code)

	require.NoError(t, f.svc.VerifyEmail(ctx, auth.VerifyEmailInput{Email: "a@x.com", VerificationCode: code}))

	account, err := f.accounts.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, account.Verified)
	assert.Nil(t, account.VerificationCodeHash)

	err = f.svc.VerifyEmail(ctx, auth.VerifyEmailInput{Email: "a@x.com", VerificationCode: code})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, auth.CodeAlreadyVerified)
}

func TestFlow_ResetPassword(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)

	_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)
	before, err := f.accounts.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	resetToken, err := f.svc.ForgotPassword(ctx, auth.ForgotPasswordInput{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Contains(t, f.notifier.last(t).HTML, resetToken)

	sessionToken, err := f.svc.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)

	rejected := []struct {
		name  string
		token string
		at    time.Time
	}{
		{"session token", sessionToken, f.clock.now},
		{"tampered token", tamper(resetToken), f.clock.now},
		{"expired token", resetToken, f.clock.now.Add(auth.DefaultResetTokenTTL)},
	}
	issuedAt := f.clock.now
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			f.clock.now = tt.at
			defer func() { f.clock.now = issuedAt }()

			err := f.svc.ResetPassword(ctx, auth.ResetPasswordInput{Token: tt.token, NewPassword: "p2"})
			require.Error(t, err)
			assert.Equal(t, auth.KindInvalidToken, auth.KindOf(err))

			after, err := f.accounts.GetByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			assert.Equal(t, before.PasswordHash, after.PasswordHash)
		})
	}

	require.NoError(t, f.svc.ResetPassword(ctx, auth.ResetPasswordInput{Token: resetToken, NewPassword: "p2"}))

	_, err = f.svc.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "p1"})
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)

	_, err = f.svc.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "p2"})
	require.NoError(t, err)
}
