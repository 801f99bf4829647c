// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRunsWithoutConfigFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v, l, err := setup([]string{
		"--api-key", "demo-key",
		"--address", ":9999",
		"--debug",
	})
	require.NoError(err)
	require.NotNil(l)

	assert.Equal("demo-key", v.GetString("torchlite.apikey"))
	assert.Equal(":9999", v.GetString("servers.primary.address"))
	assert.Equal("DEBUG", v.GetString("logging.level"))
}

func TestSetupReadsEnvironment(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	t.Setenv("TORCHLITE_TORCHLITE_APIKEY", "env-key")

	v, _, err := setup(nil)
	require.NoError(err)
	assert.Equal("env-key", v.GetString("torchlite.apikey"))
}

func TestSetupExplicitFileMustExist(t *testing.T) {
	assert := assert.New(t)

	_, _, err := setup([]string{"--file", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(err)
}

func TestSetupReadsExplicitFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	file := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(os.WriteFile(file, []byte("torchlite:\n  apikey: file-key\n"), 0o600))

	v, _, err := setup([]string{"--file", file})
	require.NoError(err)
	assert.Equal("file-key", v.GetString("torchlite.apikey"))
}

func TestSetupHelpFlag(t *testing.T) {
	_, _, err := setup([]string{"--help"})
	assert.True(t, errors.Is(err, pflag.ErrHelp))
}
