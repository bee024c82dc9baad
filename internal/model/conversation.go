// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessages caps the in-memory transcript. Older messages are pruned so a
// long-running session cannot grow without bound.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat transcript with its metadata.
//
// A conversation is either remote-backed (ID assigned by the server) or
// local-only (ID generated here with the "local-" prefix). Local-only
// conversations are re-keyed to server ids during sync.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []*Message `json:"messages"`
}

// localIDPrefix marks conversations that have never been seen by the server.
const localIDPrefix = "local-"

// NewConversation creates an empty local-only conversation.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        localIDPrefix + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// IsLocalOnly reports whether the conversation has no server id yet.
func (c *Conversation) IsLocalOnly() bool {
	return IsLocalID(c.ID)
}

// IsLocalID reports whether a conversation id was minted locally.
func IsLocalID(id string) bool {
	return len(id) > len(localIDPrefix) && id[:len(localIDPrefix)] == localIDPrefix
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message, refreshes the timestamp and auto-title, and
// prunes history past MaxMessages.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
	c.prune()
}

// AddUserMessage creates and appends a text message from the user.
func (c *Conversation) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	c.AddMessage(msg)
	return msg
}

// AddAssistantMessage creates and appends a streaming assistant message.
func (c *Conversation) AddAssistantMessage() *Message {
	msg := NewAssistantMessage()
	c.AddMessage(msg)
	return msg
}

// LastMessage returns the most recent message, or nil when empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastUserMessage returns the most recent user message, or nil.
func (c *Conversation) LastUserMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i]
		}
	}
	return nil
}

// RemoveMessage deletes a message by id. Returns true when found.
func (c *Conversation) RemoveMessage(id string) bool {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// TruncateAfter drops every message following the one with the given id.
// Used when the user edits an earlier message and resubmits.
func (c *Conversation) TruncateAfter(id string) bool {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = c.Messages[:i+1]
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty reports whether the transcript has no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// prune keeps only the most recent MaxMessages messages.
func (c *Conversation) prune() {
	if len(c.Messages) <= MaxMessages {
		return
	}
	c.Messages = c.Messages[len(c.Messages)-MaxMessages:]
}

// =============================================================================
// HISTORY
// =============================================================================

// HistoryEntry is the wire form of a transcript entry sent with chat
// requests.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History converts the transcript to wire history, excluding streaming
// messages and empty entries.
func (c *Conversation) History() []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.Streaming || msg.IsEmpty() {
			continue
		}
		entries = append(entries, HistoryEntry{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return entries
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle derives a title from the first user message when unset.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && !msg.IsEmpty() {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// SetTitle sets the title explicitly, e.g. after a rename or when the server
// assigns one.
func (c *Conversation) SetTitle(title string) {
	c.Title = title
	c.UpdatedAt = time.Now()
}

// DisplayTitle returns the title or a placeholder for empty conversations.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// =============================================================================
// METADATA
// =============================================================================

// ConversationMeta is lightweight listing metadata for the sidebar.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
	LocalOnly    bool      `json:"local_only"`
}

// Meta returns listing metadata for the conversation.
func (c *Conversation) Meta() ConversationMeta {
	preview := ""
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && !msg.IsEmpty() {
			preview = msg.Preview(80)
			break
		}
	}
	return ConversationMeta{
		ID:           c.ID,
		Title:        c.DisplayTitle(),
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Preview:      preview,
		LocalOnly:    c.IsLocalOnly(),
	}
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		msgCopy := *msg
		clone.Messages[i] = &msgCopy
	}
	return clone
}
