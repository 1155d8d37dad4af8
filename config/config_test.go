// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsZeroValueWhenNoConfigFound(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Empty(t, cfg.Setup.BeforeAll)
	assert.Nil(t, cfg.EnvFile)
}

func TestLoadDecodesSetupAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "vars.env")
	require.NoError(t, os.WriteFile(envPath, []byte("TOKEN=abc123\n"), 0o644))

	configYAML := `
setup:
  before_all:
    - description: migrate
      script: "echo migrating"
      wait_until: finished
env_file: vars.env
`
	configPath := filepath.Join(dir, "capti-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	require.Len(t, cfg.Setup.BeforeAll, 1)
	assert.Equal(t, "migrate", cfg.Setup.BeforeAll[0].Description)
	assert.True(t, cfg.Setup.BeforeAll[0].Wait.Finished)
	require.NotNil(t, cfg.EnvFile)
	assert.Equal(t, "abc123", cfg.EnvFile["TOKEN"])
}

func TestLoadHonorsExplicitConfigPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "my-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("setup:\n  before_all: []\n"), 0o644))

	cfg, err := Load(dir, configPath)
	require.NoError(t, err)
	assert.Empty(t, cfg.Setup.BeforeAll)
}
