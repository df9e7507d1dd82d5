// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

//go:build tools

// Package main pins test dependencies that are only referenced from
// build-tagged or generated code to go.mod.
// See https://go.dev/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module
package main

import (
	// Testing frameworks
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/stretchr/testify/mock"

	// Integration test infrastructure (//go:build integration)
	_ "github.com/testcontainers/testcontainers-go"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"
)
