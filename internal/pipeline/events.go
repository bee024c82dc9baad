// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/router"
)

// State is the submission phase of the pipeline. One request is in flight
// at a time; while any non-idle state holds, new submissions are ignored.
type State int

const (
	// StateIdle accepts new input.
	StateIdle State = iota
	// StateSubmitting covers the window between accepting input and the
	// first byte of the reply.
	StateSubmitting
	// StateStreaming is active while reply deltas arrive.
	StateStreaming
	// StateAwaiting is active for a single-shot reply being revealed.
	StateAwaiting
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	case StateAwaiting:
		return "awaiting"
	}
	return "unknown"
}

// EventKind discriminates pipeline events.
type EventKind int

const (
	// EventState announces a state transition.
	EventState EventKind = iota
	// EventUserMessage announces the optimistic append of the user's
	// message.
	EventUserMessage
	// EventAssistantStarted announces the placeholder assistant message.
	EventAssistantStarted
	// EventDelta carries one streamed text fragment.
	EventDelta
	// EventMeta announces the server-assigned conversation identity.
	EventMeta
	// EventDone announces a completed reply.
	EventDone
	// EventError announces a failed request.
	EventError
)

// Event is one pipeline notification. The UI folds these into its view.
type Event struct {
	Kind      EventKind
	State     State
	RequestID string

	// Message is set for EventUserMessage, EventAssistantStarted, and
	// EventDone.
	Message *model.Message

	// Delta is set for EventDelta.
	Delta string

	// ConversationID is set for EventMeta, carrying the adopted server id.
	ConversationID string

	// Served names the path that answered, set on EventDone.
	Served router.Served

	// Err is set for EventError.
	Err error
}
