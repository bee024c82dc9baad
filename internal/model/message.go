// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLES AND MODALITIES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Modality identifies the input kind a user message was produced from.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a conversation transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Modality  Modality  `json:"modality,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Attachment is the local path of the file behind an image or audio
	// message. Empty for plain text.
	Attachment string `json:"attachment,omitempty"`

	// Streaming is true while an assistant message is still receiving
	// deltas. Streaming messages are finalized before persistence.
	Streaming bool `json:"-"`

	// Lang is the detected language of a user message, used to pick the
	// system prompt and the speech locale.
	Lang string `json:"lang,omitempty"`

	// Served records which path produced an assistant message,
	// "remote" or "local".
	Served string `json:"served,omitempty"`
}

// NewUserMessage creates a text message authored by the user.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Modality:  ModalityText,
		CreatedAt: time.Now(),
	}
}

// NewAttachmentMessage creates a user message carrying an image or audio file.
func NewAttachmentMessage(modality Modality, caption, path string) *Message {
	return &Message{
		ID:         uuid.NewString(),
		Role:       RoleUser,
		Content:    caption,
		Modality:   modality,
		Attachment: path,
		CreatedAt:  time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant message in streaming state.
// Content accumulates through AppendDelta until Finalize is called.
func NewAssistantMessage() *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Streaming: true,
		CreatedAt: time.Now(),
	}
}

// AppendDelta appends a streamed text delta to the message content.
func (m *Message) AppendDelta(delta string) {
	m.Content += delta
}

// Finalize marks a streaming message as complete.
func (m *Message) Finalize() {
	m.Streaming = false
}

// IsEmpty reports whether the message carries no visible content.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// Preview returns the first maxLen runes of the content on a single line.
func (m *Message) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
