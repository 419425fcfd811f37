// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactdir/contactdir/pkg/errutil"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeedFile(t *testing.T) {
	t.Run("parses users and contacts", func(t *testing.T) {
		path := writeSeedFile(t, `
users:
  - username: alice
    password: Password1
    contacts:
      - name: Ada Lovelace
        email: ada@example.com
        phone: "555-0100"
  - username: bob
    password: Password2
`)
		seed, err := loadSeedFile(path)
		require.NoError(t, err)
		require.Len(t, seed.Users, 2)
		assert.Equal(t, "alice", seed.Users[0].Username)
		require.Len(t, seed.Users[0].Contacts, 1)
		assert.Equal(t, "Ada Lovelace", seed.Users[0].Contacts[0].Name)
		assert.Empty(t, seed.Users[1].Contacts)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadSeedFile("/nonexistent/seed.yaml")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SEED_READ_FAILED")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeSeedFile(t, "users: [unclosed")
		_, err := loadSeedFile(path)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SEED_INVALID")
	})

	t.Run("no users", func(t *testing.T) {
		path := writeSeedFile(t, "users: []")
		_, err := loadSeedFile(path)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SEED_INVALID")
	})

	t.Run("weak password rejected up front", func(t *testing.T) {
		path := writeSeedFile(t, `
users:
  - username: alice
    password: short
`)
		_, err := loadSeedFile(path)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SEED_INVALID")
	})
}

func TestNewHasher(t *testing.T) {
	assert.IsType(t, newHasher("sha256"), newHasher(""))
	assert.NotEqual(t, newHasher("sha256"), newHasher("argon2id"))
}
