// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mgchat/internal/model"
)

func sampleConversation() *model.Conversation {
	conv := model.NewConversation()
	conv.AddUserMessage("What is a goroutine?")
	reply := conv.AddAssistantMessage()
	reply.Content = "A goroutine is a lightweight thread."
	reply.Finalize()
	return conv
}

func TestMarkdownTranscript(t *testing.T) {
	out := Markdown(sampleConversation())
	assert.Contains(t, out, "# What is a goroutine?")
	assert.Contains(t, out, "**User**")
	assert.Contains(t, out, "**Assistant**")
	assert.Contains(t, out, "lightweight thread")
}

func TestMarkdownSkipsStreamingMessages(t *testing.T) {
	conv := sampleConversation()
	conv.AddAssistantMessage() // still streaming
	out := Markdown(conv)
	assert.Equal(t, 1, countOccurrences(out, "**Assistant**"))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}

func TestWriteJSONRoundTrip(t *testing.T) {
	conv := sampleConversation()
	path := filepath.Join(t.TempDir(), "conv.json")
	written, err := Write(conv, path, "")
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded model.Conversation
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, conv.ID, loaded.ID)
	assert.Len(t, loaded.Messages, 2)
}

func TestWriteMarkdownByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.md")
	_, err := Write(sampleConversation(), path, "")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "**User**")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("MD")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestDefaultPathSanitizesTitle(t *testing.T) {
	conv := sampleConversation()
	conv.SetTitle("What is a Goroutine?!")
	path := DefaultPath("/tmp/exports", conv, FormatMarkdown)
	assert.Contains(t, path, "/tmp/exports/what-is-a-goroutine-")
	assert.Contains(t, path, ".md")
}
