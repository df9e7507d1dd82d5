// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// SMTP defaults.
const (
	DefaultSMTPPort       = 587
	DefaultSMTPMaxRetries = 3
	DefaultSMTPRetryBase  = 500 * time.Millisecond
	implicitTLSPort       = 465
)

// SMTPConfig configures an SMTPSink.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	MaxRetries uint64
	RetryBase  time.Duration
}

type deliverFunc func(ctx context.Context, from, to string, raw []byte) error

// SMTPSink delivers messages through an SMTP relay.
// Port 465 uses implicit TLS; other ports upgrade with STARTTLS when offered.
// Transient failures are retried with exponential backoff; 5xx replies are not.
type SMTPSink struct {
	cfg     SMTPConfig
	deliver deliverFunc
	now     func() time.Time
}

// NewSMTPSink creates an SMTPSink.
func NewSMTPSink(cfg SMTPConfig) (*SMTPSink, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").
			With("port", cfg.Port).
			Errorf("smtp port out of range")
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultSMTPRetryBase
	}

	s := &SMTPSink{cfg: cfg, now: time.Now}
	s.deliver = s.deliverSMTP
	return s, nil
}

// Send delivers msg, retrying transient failures.
func (s *SMTPSink) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	raw := buildMessage(msg, s.now())

	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(s.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.deliver(ctx, msg.From, msg.To, raw); err != nil {
			if isPermanentSMTPError(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("NOTIFY_SMTP_FAILED").
			With("to", msg.To).
			With("host", s.cfg.Host).
			Wrap(err)
	}
	return nil
}

func (s *SMTPSink) deliverSMTP(ctx context.Context, from, to string, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // best effort, Dial already succeeded
	}

	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	if s.cfg.Port == implicitTLSPort {
		conn = tls.Client(conn, tlsConfig)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // already failing
		return err
	}
	defer c.Close() //nolint:errcheck // Quit below reports the meaningful error

	if s.cfg.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// isPermanentSMTPError reports whether the server rejected the message outright.
func isPermanentSMTPError(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code >= 500
}

func buildMessage(msg Message, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	return b.Bytes()
}

// Compile-time interface check.
var _ Sink = (*SMTPSink)(nil)
