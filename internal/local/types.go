// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message is a chat message in the local runtime's wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options carries model parameters for inference.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ChatRequest is the body for the /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// ShowModelRequest is the body for the /api/show endpoint.
type ShowModelRequest struct {
	Name string `json:"name"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is a single line of the streaming /api/chat response.
type ChatResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   Message   `json:"message"`
	Done      bool      `json:"done"`
	EvalCount int       `json:"eval_count,omitempty"`
}

// ModelInfo describes an installed model from /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// ListModelsResponse is the response from /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// TranscriptionResponse is the response from /v1/audio/transcriptions.
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// runtimeError is the error body the runtime returns on failures.
type runtimeError struct {
	Error string `json:"error"`
}
