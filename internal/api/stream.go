// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// streamReadSize is the buffer used when consuming a text/plain chunk
// stream. Chunks arrive as the server flushed them, not line-delimited.
const streamReadSize = 4096

// =============================================================================
// CHAT (CALLBACK API)
// =============================================================================

// Chat sends a message to POST /api/chat and consumes the reply.
//
// The server chooses the response mode: an application/json body is a single
// complete reply, a text/plain body is a chunk stream. In the stream, any
// chunk that parses as a JSON object announcing a conversation_id is
// metadata; every other chunk is a text delta. Both modes are surfaced
// through the callback the same way, and the accumulated reply text plus the
// final conversation identity are returned.
//
// An empty reply yields ErrTypeMalformedResponse. Cancellation and transport
// failures mid-stream return a *StreamError carrying the partial text.
func (c *Client) Chat(ctx context.Context, chatReq ChatRequest, cb StreamCallback) (string, *ChatMeta, error) {
	if cb == nil {
		cb = func(StreamChunk) {}
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", nil, NewError(ErrTypeMalformedResponse, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", nil, NewError(ErrTypeMalformedResponse, "failed to build request", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		return "", nil, wrapTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := readBody(resp)
		c.log.Debug("chat request failed", "status", resp.StatusCode, "duration", time.Since(start))
		return "", nil, statusError(resp.StatusCode, data)
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		return c.consumeSingle(resp, cb)
	case strings.Contains(contentType, "text/plain"):
		return c.consumeStream(ctx, resp, cb)
	default:
		return "", nil, NewError(ErrTypeMalformedResponse, "Unsupported Content-Type: "+contentType, nil)
	}
}

// consumeSingle handles the application/json response mode.
func (c *Client) consumeSingle(resp *http.Response, cb StreamCallback) (string, *ChatMeta, error) {
	data, err := readBody(resp)
	if err != nil {
		return "", nil, NewError(ErrTypeMalformedResponse, "failed to read response", err)
	}

	var cr ChatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", nil, NewError(ErrTypeMalformedResponse, "failed to parse response", err)
	}
	if cr.Response == "" {
		return "", nil, NewError(ErrTypeMalformedResponse, MsgEmptyResponse, nil)
	}

	var meta *ChatMeta
	if cr.ConversationID != "" {
		meta = &ChatMeta{
			ConversationID:    cr.ConversationID,
			ConversationTitle: cr.ConversationTitle,
		}
		cb(StreamChunk{Meta: meta})
	}
	cb(StreamChunk{Delta: cr.Response})
	cb(StreamChunk{Done: true})
	return cr.Response, meta, nil
}

// consumeStream handles the text/plain chunk stream mode.
func (c *Client) consumeStream(ctx context.Context, resp *http.Response, cb StreamCallback) (string, *ChatMeta, error) {
	var accumulated strings.Builder
	var meta *ChatMeta
	buf := make([]byte, streamReadSize)

	for {
		select {
		case <-ctx.Done():
			return accumulated.String(), meta, &StreamError{
				Partial: accumulated.String(),
				Err:     NewError(ErrTypeAbortedByUser, ErrAbortedByUser.Message, ctx.Err()),
			}
		default:
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			m, rest := splitMetaPrefix(string(buf[:n]))
			if m != nil {
				meta = m
				cb(StreamChunk{Meta: m})
			}
			if rest != "" {
				accumulated.WriteString(rest)
				cb(StreamChunk{Delta: rest})
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return accumulated.String(), meta, &StreamError{
					Partial: accumulated.String(),
					Err:     NewError(ErrTypeAbortedByUser, ErrAbortedByUser.Message, ctx.Err()),
				}
			}
			return accumulated.String(), meta, &StreamError{
				Partial: accumulated.String(),
				Err:     NewError(ErrTypeNetworkUnreachable, MsgOffline, err),
			}
		}
	}

	if strings.TrimSpace(accumulated.String()) == "" {
		return "", meta, NewError(ErrTypeMalformedResponse, MsgEmptyResponse, nil)
	}

	cb(StreamChunk{Done: true})
	return accumulated.String(), meta, nil
}

// splitMetaPrefix splits a leading JSON object off one stream read. A read
// may carry the metadata object alone or coalesced with the text that
// follows it, so the remainder after the object is returned as delta text.
// A chunk that does not start with a complete JSON object comes back
// untouched; a leading object without a conversation_id is control noise
// and is dropped.
func splitMetaPrefix(chunk string) (*ChatMeta, string) {
	trimmed := strings.TrimLeft(chunk, " \t\r\n")
	if !strings.HasPrefix(trimmed, "{") {
		return nil, chunk
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	var m ChatMeta
	if err := dec.Decode(&m); err != nil {
		return nil, chunk
	}
	rest := strings.TrimLeft(trimmed[dec.InputOffset():], " \t\r\n")
	if m.ConversationID == "" {
		return nil, rest
	}
	return &m, rest
}

// =============================================================================
// CHAT (CHANNEL API)
// =============================================================================

// ChatStreamChan runs Chat in a goroutine and delivers chunks over a
// channel, for callers driving a select loop. The channel closes after the
// final chunk; a failed stream ends with a chunk whose Err is set.
func (c *Client) ChatStreamChan(ctx context.Context, chatReq ChatRequest) <-chan StreamChunk {
	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)
		_, _, err := c.Chat(ctx, chatReq, func(chunk StreamChunk) {
			select {
			case ch <- chunk:
			case <-ctx.Done():
			}
		})
		if err != nil {
			select {
			case ch <- StreamChunk{Done: true, Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// =============================================================================
// STREAM ACCUMULATOR
// =============================================================================

// StreamAccumulator collects chat stream chunks into the final reply.
type StreamAccumulator struct {
	content strings.Builder
	meta    *ChatMeta
	done    bool
	err     error
}

// NewStreamAccumulator creates an empty accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Add folds one chunk into the accumulator.
func (a *StreamAccumulator) Add(chunk StreamChunk) {
	if chunk.Err != nil {
		a.err = chunk.Err
		a.done = true
		return
	}
	if chunk.Meta != nil {
		a.meta = chunk.Meta
	}
	a.content.WriteString(chunk.Delta)
	if chunk.Done {
		a.done = true
	}
}

// Content returns the accumulated reply text.
func (a *StreamAccumulator) Content() string {
	return a.content.String()
}

// Meta returns the conversation identity announced by the stream, or nil.
func (a *StreamAccumulator) Meta() *ChatMeta {
	return a.meta
}

// IsDone reports whether the stream has finished.
func (a *StreamAccumulator) IsDone() bool {
	return a.done
}

// Err returns the terminal stream error, if any.
func (a *StreamAccumulator) Err() error {
	return a.err
}
