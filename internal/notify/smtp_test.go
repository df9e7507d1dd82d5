// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package notify

import (
	"context"
	"errors"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/pkg/errutil"
)

var testMessage = Message{
	To:      "a@x.com",
	From:    "no-reply@x.com",
	Subject: "Email verification",
	HTML:    "<p>Your verification code is <strong>123456</strong></p>",
}

func newTestSMTPSink(t *testing.T, deliver deliverFunc) *SMTPSink {
	t.Helper()
	sink, err := NewSMTPSink(SMTPConfig{
		Host:       "smtp.example.org",
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
	})
	require.NoError(t, err)
	sink.deliver = deliver
	sink.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return sink
}

func TestNewSMTPSink(t *testing.T) {
	t.Run("requires host", func(t *testing.T) {
		_, err := NewSMTPSink(SMTPConfig{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "NOTIFY_CONFIG_INVALID")
	})

	t.Run("rejects out of range port", func(t *testing.T) {
		_, err := NewSMTPSink(SMTPConfig{Host: "smtp.example.org", Port: 70000})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "NOTIFY_CONFIG_INVALID")
	})

	t.Run("applies defaults", func(t *testing.T) {
		sink, err := NewSMTPSink(SMTPConfig{Host: "smtp.example.org"})
		require.NoError(t, err)
		assert.Equal(t, DefaultSMTPPort, sink.cfg.Port)
		assert.Equal(t, DefaultSMTPRetryBase, sink.cfg.RetryBase)
	})
}

func TestSMTPSink_Send(t *testing.T) {
	t.Run("delivers once on success", func(t *testing.T) {
		var calls int
		var gotRaw string
		sink := newTestSMTPSink(t, func(_ context.Context, from, to string, raw []byte) error {
			calls++
			assert.Equal(t, "no-reply@x.com", from)
			assert.Equal(t, "a@x.com", to)
			gotRaw = string(raw)
			return nil
		})

		require.NoError(t, sink.Send(context.Background(), testMessage))
		assert.Equal(t, 1, calls)
		assert.Contains(t, gotRaw, "123456")
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls int
		sink := newTestSMTPSink(t, func(context.Context, string, string, []byte) error {
			calls++
			if calls < 3 {
				return &textproto.Error{Code: 421, Msg: "try again later"}
			}
			return nil
		})

		require.NoError(t, sink.Send(context.Background(), testMessage))
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int
		sink := newTestSMTPSink(t, func(context.Context, string, string, []byte) error {
			calls++
			return errors.New("connection refused")
		})

		err := sink.Send(context.Background(), testMessage)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "NOTIFY_SMTP_FAILED")
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent rejection", func(t *testing.T) {
		var calls int
		sink := newTestSMTPSink(t, func(context.Context, string, string, []byte) error {
			calls++
			return &textproto.Error{Code: 550, Msg: "mailbox unavailable"}
		})

		err := sink.Send(context.Background(), testMessage)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("rejects invalid message without dialing", func(t *testing.T) {
		sink := newTestSMTPSink(t, func(context.Context, string, string, []byte) error {
			t.Fatal("deliver should not be called")
			return nil
		})

		err := sink.Send(context.Background(), Message{To: "a@x.com"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_MESSAGE")
	})
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := string(buildMessage(Message{
		To:      "a@x.com",
		From:    "no-reply@x.com",
		Subject: "Vérification",
		HTML:    "<p>hi</p>",
	}, now))

	headers, body, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found, "headers and body are separated by a blank line")

	assert.Contains(t, headers, "From: no-reply@x.com\r\n")
	assert.Contains(t, headers, "To: a@x.com\r\n")
	assert.Contains(t, headers, "Subject: =?utf-8?q?V=C3=A9rification?=\r\n")
	assert.Contains(t, headers, "Date: Sun, 01 Mar 2026 12:00:00 +0000")
	assert.Contains(t, headers, "Content-Type: text/html; charset=UTF-8")
	assert.Equal(t, "<p>hi</p>\r\n", body)
}
