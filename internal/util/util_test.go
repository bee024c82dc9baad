// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	err := AtomicWriteFile(path, []byte(`{"ok":true}`), 0644)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	// Overwrite must replace the old content completely.
	err = AtomicWriteFile(path, []byte("v2"), 0644)
	require.NoError(t, err)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "", TruncateRunes("hello", 0))
	assert.Equal(t, "hello", TruncateRunes("hello", 5))
	assert.Equal(t, "he...", TruncateRunes("hello world", 5))
	assert.Equal(t, "he", TruncateRunes("hello", 2))

	// Multibyte runes are never split.
	assert.Equal(t, "مر...", TruncateRunes("مرحبا بالعالم", 5))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", OneLine("a\nb\r\nc"))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", PadRight("ab", 4))
	assert.Equal(t, "abcd", PadRight("abcd", 2))
}
