// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/authkeep/authkeep/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authkeep",
		Short: "authkeep - account authentication service",
		Long: `authkeep registers accounts, verifies their email addresses,
issues bearer tokens on login and runs the password reset flow.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (default: XDG_CONFIG_HOME/authkeep/config.yaml when present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewHashCmd())

	return cmd
}

// resolveConfigPath returns --config, or the XDG config file when it exists.
func resolveConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return xdg.FindConfigFile()
}
