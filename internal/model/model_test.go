// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationIsLocalOnly(t *testing.T) {
	conv := NewConversation()
	assert.True(t, conv.IsLocalOnly())
	assert.True(t, conv.IsEmpty())

	conv.ID = "42"
	assert.False(t, conv.IsLocalOnly())
}

func TestAutoTitleFromFirstUserMessage(t *testing.T) {
	conv := NewConversation()
	assert.Equal(t, "New Conversation", conv.DisplayTitle())

	conv.AddUserMessage("What is the capital of France?")
	assert.Equal(t, "What is the capital of France?", conv.Title)

	// Title is sticky once set.
	conv.AddUserMessage("And of Germany?")
	assert.Equal(t, "What is the capital of France?", conv.Title)

	conv.SetTitle("Geography")
	assert.Equal(t, "Geography", conv.DisplayTitle())
}

func TestStreamingMessageLifecycle(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("hi")

	msg := conv.AddAssistantMessage()
	require.True(t, msg.Streaming)

	msg.AppendDelta("Hel")
	msg.AppendDelta("lo ")
	msg.AppendDelta("world")
	msg.Finalize()

	assert.Equal(t, "Hello world", msg.Content)
	assert.False(t, msg.Streaming)
	assert.Equal(t, 2, conv.MessageCount())
}

func TestHistoryExcludesStreamingAndEmpty(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("question")
	asst := conv.AddAssistantMessage()
	asst.AppendDelta("partial")

	history := conv.History()
	require.Len(t, history, 1)
	assert.Equal(t, "user", history[0].Role)

	asst.Finalize()
	history = conv.History()
	require.Len(t, history, 2)
	assert.Equal(t, "partial", history[1].Content)
}

func TestTruncateAfter(t *testing.T) {
	conv := NewConversation()
	first := conv.AddUserMessage("one")
	a := conv.AddAssistantMessage()
	a.AppendDelta("reply")
	a.Finalize()
	conv.AddUserMessage("two")

	require.True(t, conv.TruncateAfter(first.ID))
	assert.Equal(t, 1, conv.MessageCount())
	assert.False(t, conv.TruncateAfter("missing"))
}

func TestPruneKeepsRecentMessages(t *testing.T) {
	conv := NewConversation()
	for i := 0; i < MaxMessages+10; i++ {
		conv.AddMessage(NewUserMessage("m"))
	}
	assert.Equal(t, MaxMessages, conv.MessageCount())
}

func TestMessagePreviewRuneSafe(t *testing.T) {
	msg := NewUserMessage("مرحبا بالعالم هذا نص طويل جدا")
	preview := msg.Preview(10)
	assert.LessOrEqual(t, len([]rune(preview)), 10)
}

func TestCloneIsDeep(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("original")

	clone := conv.Clone()
	clone.Messages[0].Content = "mutated"

	assert.Equal(t, "original", conv.Messages[0].Content)
}
