// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/internal/store"
	"github.com/authkeep/authkeep/pkg/errutil"
)

func TestOpen_InvalidURL(t *testing.T) {
	pool, err := store.Open(context.Background(), "postgres://u:p@localhost:5432/db?pool_max_conns=lots")
	require.Error(t, err)
	assert.Nil(t, pool)
	errutil.AssertErrorCode(t, err, "STORE_CONFIG_INVALID")
}
