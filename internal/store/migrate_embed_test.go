// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err, "should read embedded migrations directory")

	fileNames := make(map[string]bool)
	for _, entry := range entries {
		fileNames[entry.Name()] = true
	}
	assert.True(t, fileNames["000001_create_accounts.up.sql"])
	assert.True(t, fileNames["000001_create_accounts.down.sql"])

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		assert.True(t, pattern.MatchString(entry.Name()),
			"file %s should match pattern NNNNNN_name.(up|down).sql", entry.Name())
	}

	// every up has a down
	for name := range fileNames {
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			assert.True(t, fileNames[base+".down.sql"], "missing down migration for %s", name)
		}
	}
}

func TestAccountsMigration_EnforcesUniqueEmail(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_create_accounts.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "UNIQUE (email)")
}
