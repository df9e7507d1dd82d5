// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package notify delivers account emails (verification codes, reset links).
package notify

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Message is an outbound HTML email.
type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if m.To == "" {
		return oops.Code("NOTIFY_INVALID_MESSAGE").Errorf("recipient is required")
	}
	if m.From == "" {
		return oops.Code("NOTIFY_INVALID_MESSAGE").Errorf("sender is required")
	}
	return nil
}

// Sink delivers a message synchronously.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// LogSink writes messages to the logger instead of delivering them.
// Intended for local development; bodies are only logged at debug level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Send logs the message.
func (s *LogSink) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email not delivered, log sink in use",
		"to", msg.To,
		"subject", msg.Subject)
	s.logger.DebugContext(ctx, "email body", "to", msg.To, "html", msg.HTML)
	return nil
}

// Compile-time interface check.
var _ Sink = (*LogSink)(nil)
