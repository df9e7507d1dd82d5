// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply, roll back or inspect the account schema migrations.
The database is taken from DATABASE_URL or store.url in the config file.`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateVersionCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				pending, err := m.PendingMigrations()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					cmd.Println("Database is up to date")
					return nil
				}

				cmd.Printf("Applying %d migration(s):\n", len(pending))
				for _, v := range pending {
					cmd.Printf("  %s\n", migrationLabel(v))
				}
				if err := m.Up(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Long:  `Roll back the most recent migration, or every migration with --all.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				current, _, err := m.Version()
				if err != nil {
					return err
				}
				if current == 0 {
					cmd.Println("No migrations to roll back")
					return nil
				}

				if all {
					cmd.Println("Rolling back all migrations...")
					err = m.Down()
				} else {
					cmd.Printf("Rolling back %s\n", migrationLabel(current))
					err = m.Steps(-1)
				}
				if err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration (drops all account data)")
	return cmd
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				current, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if current == 0 {
					cmd.Println("Version: none (no migrations applied)")
					return nil
				}
				suffix := ""
				if dirty {
					suffix = " (dirty, fix the schema and run migrate force)"
				}
				cmd.Printf("Version: %s%s\n", migrationLabel(current), suffix)
				return nil
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Record a schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag.
Only use this after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", version)
				return nil
			})
		},
	}
}

// withMigrator opens a migrator for the configured database, runs fn and closes it.
func withMigrator(cmd *cobra.Command, fn func(m migrator) error) error {
	databaseURL, err := getDatabaseURL()
	if err != nil {
		return err
	}

	m, err := newMigrator(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: failed to close migrator: %v\n", closeErr)
		}
	}()

	return fn(m)
}

// getDatabaseURL resolves the database from the config file and DATABASE_URL.
func getDatabaseURL() (string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(path, nil)
	if err != nil {
		return "", err
	}
	if cfg.Store.URL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("%s environment variable is required", config.EnvDatabaseURL)
	}
	return cfg.Store.URL, nil
}

// parseForceVersion reads a leading integer, ignoring surrounding text.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	return version, nil
}

func migrationLabel(version uint) string {
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		return fmt.Sprintf("%d", version)
	}
	return name
}
