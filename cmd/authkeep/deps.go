// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/auth/memory"
	"github.com/authkeep/authkeep/internal/auth/postgres"
	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/notify"
	"github.com/authkeep/authkeep/internal/store"
)

// AccountStore is an account repository that can report its health.
type AccountStore interface {
	auth.AccountRepository
	Ping(ctx context.Context) error
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreOpener opens the configured account store and returns its closer.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (AccountStore, func(), error)

	// SinkFactory builds the notification sink.
	// Default: newSink
	SinkFactory func(cfg *config.Config, logger *slog.Logger) (notify.Sink, error)

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer

	// Ready is called with the bound API address once requests are accepted.
	Ready func(apiAddr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.StoreOpener == nil {
		out.StoreOpener = openStore
	}
	if out.SinkFactory == nil {
		out.SinkFactory = newSink
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	return &out
}

// migrator is the subset of *store.Migrator used by the CLI.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// newMigrator is swapped out in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// openStore opens the account store selected by store.driver.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (AccountStore, func(), error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn("using in-memory account store, accounts are lost on restart")
		return memory.NewAccountRepository(), func() {}, nil
	}

	if cfg.Store.AutoMigrate {
		if err := applyMigrations(cfg.Store.URL, logger); err != nil {
			return nil, nil, err
		}
	}

	pool, err := store.Open(ctx, cfg.Store.URL)
	if err != nil {
		return nil, nil, oops.With("operation", "open account store").Wrap(err)
	}
	logger.Info("connected to database")
	return postgres.NewAccountRepository(pool), pool.Close, nil
}

// applyMigrations brings the schema up to date before serving.
func applyMigrations(databaseURL string, logger *slog.Logger) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	if len(pending) == 0 {
		logger.Info("database schema is up to date")
		return nil
	}

	logger.Info("applying migrations", "count", len(pending))
	if err := m.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	return nil
}

// newSink builds the notification sink selected by mail.driver.
func newSink(cfg *config.Config, logger *slog.Logger) (notify.Sink, error) {
	if cfg.Mail.Driver == config.MailDriverSMTP {
		sink, err := notify.NewSMTPSink(cfg.SMTPSinkConfig())
		if err != nil {
			return nil, err
		}
		return sink, nil
	}
	logger.Warn("using log mail sink, account emails are not delivered")
	return notify.NewLogSink(logger), nil
}
