// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
	assert.Equal(t, DefaultTemperature, cfg.Generation.Temperature)
	assert.Equal(t, DefaultMaxNewTokens, cfg.Generation.MaxNewTokens)
	assert.Equal(t, "m1", cfg.TTS.Voice)
}

func TestLoadPartialFileNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
url = "http://localhost:9000"

[tts]
enabled = true
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.Server.URL)
	assert.True(t, cfg.TTS.Enabled)
	assert.Equal(t, DefaultLocalURL, cfg.Local.URL)
	assert.Equal(t, DefaultOutputFormat, cfg.Generation.OutputFormat)
}

func TestLoadInvalidURLRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
url = "not a url"
`), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Generation.Temperature = 3
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Generation.OutputFormat = "yaml"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Server.URL = "https://example.com"
	cfg.Generation.Language = "ar"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", loaded.Server.URL)
	assert.Equal(t, "ar", loaded.Generation.Language)
}
