// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "github.com/jeranaias/mgchat/internal/model"

// =============================================================================
// CHAT TYPES
// =============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string               `json:"message"`
	SystemPrompt   string               `json:"system_prompt"`
	History        []model.HistoryEntry `json:"history"`
	Temperature    float64              `json:"temperature"`
	MaxNewTokens   int                  `json:"max_new_tokens"`
	EnableBrowsing bool                 `json:"enable_browsing"`
	OutputFormat   string               `json:"output_format"`
	ConversationID *string              `json:"conversation_id"`
}

// ChatResponse is the single-shot JSON reply from POST /api/chat.
type ChatResponse struct {
	Response          string `json:"response"`
	ConversationID    string `json:"conversation_id,omitempty"`
	ConversationTitle string `json:"conversation_title,omitempty"`
}

// ChatMeta carries the conversation identity a stream announces mid-flight.
type ChatMeta struct {
	ConversationID    string `json:"conversation_id"`
	ConversationTitle string `json:"conversation_title,omitempty"`
}

// StreamChunk is one unit of a streamed chat reply. Either Delta text or
// Meta is set; Done marks the final chunk. Err is only populated on the
// final chunk of the channel API.
type StreamChunk struct {
	Delta string
	Meta  *ChatMeta
	Done  bool
	Err   error
}

// StreamCallback receives stream chunks in arrival order.
type StreamCallback func(chunk StreamChunk)

// StreamError wraps a streaming failure together with the text accumulated
// before it, so a cancelled or broken stream can still be finalized.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// AUTH TYPES
// =============================================================================

// TokenResponse is returned by login, register, and the OAuth callback.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// AuthorizeResponse is returned by GET /auth/{provider}/authorize.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// detailResponse is the error body the auth endpoints return.
type detailResponse struct {
	Detail string `json:"detail"`
}

// RegisterRequest holds the fields of the registration form.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// RemoteMessage is the wire form of a stored message.
type RemoteMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RemoteConversation is the wire form of a stored conversation.
type RemoteConversation struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Messages []RemoteMessage `json:"messages,omitempty"`
}

// SyncConversation is one conversation pushed during sync-on-login.
// ConversationID is null for conversations the server has never seen.
type SyncConversation struct {
	ConversationID *string         `json:"conversation_id"`
	Title          string          `json:"title"`
	Messages       []RemoteMessage `json:"messages"`
}

// SyncRequest is the body of POST /api/conversations/sync.
type SyncRequest struct {
	Conversations []SyncConversation `json:"conversations"`
}

// SyncResult reports the server-assigned identity of a synced conversation,
// in the same order as the request.
type SyncResult struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title,omitempty"`
}

// SyncResponse is the reply of POST /api/conversations/sync.
type SyncResponse struct {
	Conversations []SyncResult `json:"conversations"`
}

// TitleUpdate is the body of PUT /api/conversations/{id}/title.
type TitleUpdate struct {
	Title string `json:"title"`
}

// =============================================================================
// SETTINGS TYPES
// =============================================================================

// Settings holds the user preferences stored on the server.
type Settings struct {
	Language     string  `json:"language,omitempty"`
	TTSEnabled   bool    `json:"tts_enabled"`
	TTSVoice     string  `json:"tts_voice,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

// Profile holds the mutable account fields sent to PUT /users/me.
type Profile struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}
