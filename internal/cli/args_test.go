// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {
	args := Parse([]string{"--plain", "--offline", "--model", "llama3", "--lang=ar"})
	assert.True(t, args.Plain)
	assert.True(t, args.Offline)
	assert.Equal(t, "llama3", args.Model)
	assert.Equal(t, "ar", args.Language)
	assert.Empty(t, args.Message)
}

func TestParseShortFlags(t *testing.T) {
	args := Parse([]string{"-p", "-m", "qwen2.5:1.5b", "-c", "/tmp/alt.toml"})
	assert.True(t, args.Plain)
	assert.Equal(t, "qwen2.5:1.5b", args.Model)
	assert.Equal(t, "/tmp/alt.toml", args.ConfigPath)
}

func TestParseOneShotMessage(t *testing.T) {
	args := Parse([]string{"what", "is", "a", "goroutine"})
	assert.Equal(t, "what is a goroutine", args.Message)
}

func TestParseFlagsAndMessageMix(t *testing.T) {
	args := Parse([]string{"--offline", "translate", "this"})
	assert.True(t, args.Offline)
	assert.Equal(t, "translate this", args.Message)
}

func TestParseVersionAndHelp(t *testing.T) {
	assert.True(t, Parse([]string{"--version"}).Version)
	assert.True(t, Parse([]string{"-h"}).Help)
}
