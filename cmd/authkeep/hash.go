// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/config"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash a password read from stdin",
		Long: `Read a password from the first line of stdin and print its argon2id
hash using the configured work factor. Useful for seeding accounts.`,
		Args: cobra.NoArgs,
		RunE: runHash,
	}
}

func runHash(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}
	hasher, err := auth.NewArgon2idHasher(cfg.Argon2Params())
	if err != nil {
		return err
	}

	secret, err := readSecret(cmd.InOrStdin())
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(secret)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return err
}

// readSecret returns the first line of r without its line ending.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("HASH_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
