// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline drives a message from input to persisted reply: language
// detection, optimistic append, routing, stream consumption, and error
// mapping, with one request in flight at a time.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/auth"
	"github.com/jeranaias/mgchat/internal/lang"
	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/router"
	"github.com/jeranaias/mgchat/internal/store"
)

// Params are the generation settings sent with each request, sampled at
// submission time so config reloads apply to the next message.
type Params struct {
	Temperature    float64
	MaxNewTokens   int
	EnableBrowsing bool
	OutputFormat   string

	// Language overrides detection when non-empty.
	Language string
}

// Options wires a Pipeline.
type Options struct {
	Repo   *store.Repository
	Router *router.Router
	Gate   *auth.Gate
	Params func() Params
	Logger *slog.Logger
}

// pendingRequest identifies the single in-flight request. Output arriving
// for any other id is stale and discarded.
type pendingRequest struct {
	id     string
	cancel context.CancelFunc
}

// Pipeline owns the active conversation and the submission state machine.
type Pipeline struct {
	repo   *store.Repository
	router *router.Router
	gate   *auth.Gate
	params func() Params
	log    *slog.Logger

	mu        sync.Mutex
	state     State
	recording bool
	conv      *model.Conversation
	pending   *pendingRequest

	events chan Event
}

// New creates a pipeline. Events must be drained by the UI.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Params == nil {
		opts.Params = func() Params {
			return Params{Temperature: 0.7, MaxNewTokens: 128000, EnableBrowsing: true, OutputFormat: "text"}
		}
	}
	return &Pipeline{
		repo:   opts.Repo,
		router: opts.Router,
		gate:   opts.Gate,
		params: opts.Params,
		log:    opts.Logger,
		state:  StateIdle,
		events: make(chan Event, 64),
	}
}

// Events delivers pipeline notifications in order.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// State returns the current submission state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Busy reports whether a request is in flight.
func (p *Pipeline) Busy() bool {
	return p.State() != StateIdle
}

// Conversation returns the active conversation, or nil.
func (p *Pipeline) Conversation() *model.Conversation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conv
}

// SetConversation switches the active conversation. Ignored while busy.
func (p *Pipeline) SetConversation(conv *model.Conversation) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return false
	}
	p.conv = conv
	return true
}

// ClearConversation drops the active conversation, for when it is deleted.
func (p *Pipeline) ClearConversation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conv = nil
}

// SetRecording toggles the recording flag. While recording, submissions
// are ignored so a half-captured utterance cannot be sent.
func (p *Pipeline) SetRecording(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recording = on
}

// Recording reports the recording flag.
func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit accepts a text message. While a request is in flight, while
// recording, or for blank input, the submission is silently ignored and
// false is returned.
func (p *Pipeline) Submit(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	p.mu.Lock()
	if p.state != StateIdle || p.recording {
		p.mu.Unlock()
		return false
	}

	if p.conv == nil {
		conv, err := p.repo.Create()
		if err != nil {
			p.mu.Unlock()
			p.emit(Event{Kind: EventError, Err: err})
			return false
		}
		p.conv = conv
	}
	conv := p.conv

	// History is captured before the new message is appended; the server
	// receives the message itself in the message field.
	history := conv.History()

	userMsg := conv.AddUserMessage(text)
	params := p.params()
	detected := params.Language
	if detected == "" {
		detected = lang.Detect(text)
	}
	userMsg.Lang = detected

	req := api.ChatRequest{
		Message:        text,
		SystemPrompt:   lang.SystemPrompt(detected),
		History:        history,
		Temperature:    params.Temperature,
		MaxNewTokens:   params.MaxNewTokens,
		EnableBrowsing: params.EnableBrowsing,
		OutputFormat:   params.OutputFormat,
	}
	if !conv.IsLocalOnly() {
		id := conv.ID
		req.ConversationID = &id
	}

	requestID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	p.pending = &pendingRequest{id: requestID, cancel: cancel}
	p.state = StateSubmitting
	p.mu.Unlock()

	if err := p.repo.Persist(conv); err != nil {
		p.log.Warn("failed to persist user message", "error", err)
	}

	p.emit(Event{Kind: EventUserMessage, RequestID: requestID, Message: userMsg})
	p.emit(Event{Kind: EventState, State: StateSubmitting, RequestID: requestID})

	go p.run(ctx, requestID, conv, req)
	return true
}

// BeginReveal enters the Awaiting state while a reply that arrived in one
// piece is revealed gradually. Submissions stay blocked until EndReveal.
func (p *Pipeline) BeginReveal() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return false
	}
	p.state = StateAwaiting
	return true
}

// EndReveal returns to Idle after a reveal finishes.
func (p *Pipeline) EndReveal() {
	p.mu.Lock()
	if p.state == StateAwaiting {
		p.state = StateIdle
	}
	p.mu.Unlock()
}

// Cancel aborts the in-flight request. The partial reply, if any, is kept.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	pending := p.pending
	p.mu.Unlock()
	if pending == nil {
		return false
	}
	pending.cancel()
	return true
}

// Retry resubmits the last user message after a failure. The transcript is
// truncated back to that message so the server sees the same history.
func (p *Pipeline) Retry() bool {
	p.mu.Lock()
	if p.state != StateIdle || p.conv == nil {
		p.mu.Unlock()
		return false
	}
	last := p.conv.LastUserMessage()
	if last == nil {
		p.mu.Unlock()
		return false
	}
	p.conv.TruncateAfter(last.ID)
	p.conv.RemoveMessage(last.ID)
	p.mu.Unlock()
	return p.Submit(last.Content)
}

// EditResubmit replaces the content of an earlier user message, drops
// everything after it, and submits the new text.
func (p *Pipeline) EditResubmit(messageID, newText string) bool {
	p.mu.Lock()
	if p.state != StateIdle || p.conv == nil {
		p.mu.Unlock()
		return false
	}
	if !p.conv.TruncateAfter(messageID) {
		p.mu.Unlock()
		return false
	}
	p.conv.RemoveMessage(messageID)
	p.mu.Unlock()
	return p.Submit(newText)
}

// =============================================================================
// REQUEST EXECUTION
// =============================================================================

// run executes one request on its own goroutine.
func (p *Pipeline) run(ctx context.Context, requestID string, conv *model.Conversation, req api.ChatRequest) {
	assistant := conv.AddAssistantMessage()
	p.emit(Event{Kind: EventAssistantStarted, RequestID: requestID, Message: assistant})

	streaming := false
	cb := func(chunk api.StreamChunk) {
		if !p.isCurrent(requestID) {
			return
		}
		switch {
		case chunk.Meta != nil:
			p.adoptMeta(conv, chunk.Meta)
			p.emit(Event{Kind: EventMeta, RequestID: requestID, ConversationID: chunk.Meta.ConversationID})
		case chunk.Delta != "":
			if !streaming {
				streaming = true
				p.setState(StateStreaming, requestID)
			}
			assistant.AppendDelta(chunk.Delta)
			p.emit(Event{Kind: EventDelta, RequestID: requestID, Delta: chunk.Delta})
		}
	}

	content, meta, served, err := p.router.Chat(ctx, req, cb)

	if !p.isCurrent(requestID) {
		// A newer submission owns the pipeline; drop this result.
		return
	}
	defer p.clearPending(requestID)

	if err != nil {
		p.finishError(requestID, conv, assistant, err)
		return
	}
	if meta != nil && meta.ConversationID != conv.ID {
		p.adoptMeta(conv, meta)
	}

	assistant.Content = content
	assistant.Served = string(served)
	assistant.Finalize()
	if err := p.repo.Persist(conv); err != nil {
		p.log.Warn("failed to persist reply", "error", err)
	}

	p.setState(StateIdle, requestID)
	p.emit(Event{Kind: EventDone, RequestID: requestID, Message: assistant, Served: served})
}

// finishError finalizes a failed request. A partial streamed reply is kept
// as a complete message; an empty placeholder is removed.
func (p *Pipeline) finishError(requestID string, conv *model.Conversation, assistant *model.Message, err error) {
	var streamErr *api.StreamError
	if errors.As(err, &streamErr) && strings.TrimSpace(streamErr.Partial) != "" {
		assistant.Content = streamErr.Partial
		assistant.Finalize()
	} else {
		conv.RemoveMessage(assistant.ID)
	}
	if perr := p.repo.Persist(conv); perr != nil {
		p.log.Warn("failed to persist after error", "error", perr)
	}

	// A rejected session anywhere in a chat clears the token and fires
	// the login redirect once. 403 counts: the quota answer is to log in.
	if p.gate != nil && (api.IsAuthError(err) || api.TypeOf(err) == api.ErrTypeLimitReached) {
		p.gate.Invalidate()
	}

	p.setState(StateIdle, requestID)
	p.emit(Event{Kind: EventError, RequestID: requestID, Err: err})
}

// adoptMeta re-keys the conversation to the server-assigned id.
func (p *Pipeline) adoptMeta(conv *model.Conversation, meta *api.ChatMeta) {
	if meta.ConversationID == "" || meta.ConversationID == conv.ID {
		return
	}
	oldID := conv.ID
	if err := p.repo.AdoptServerID(oldID, meta.ConversationID); err != nil {
		p.log.Warn("failed to adopt server conversation id", "error", err)
	}
	p.mu.Lock()
	conv.ID = meta.ConversationID
	if meta.ConversationTitle != "" {
		conv.SetTitle(meta.ConversationTitle)
	}
	p.mu.Unlock()
}

// =============================================================================
// INTERNAL STATE HELPERS
// =============================================================================

// isCurrent reports whether requestID is still the in-flight request.
func (p *Pipeline) isCurrent(requestID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil && p.pending.id == requestID
}

// clearPending releases the pending slot if requestID still owns it.
func (p *Pipeline) clearPending(requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil && p.pending.id == requestID {
		p.pending.cancel()
		p.pending = nil
	}
}

// setState transitions the state and emits the change.
func (p *Pipeline) setState(s State, requestID string) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.emit(Event{Kind: EventState, State: s, RequestID: requestID})
}

// emit delivers an event without ever blocking the request goroutine. If
// the UI falls behind, the oldest event is dropped.
func (p *Pipeline) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		select {
		case <-p.events:
		default:
		}
		select {
		case p.events <- ev:
		default:
		}
	}
}
