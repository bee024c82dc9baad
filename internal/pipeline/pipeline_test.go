// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/auth"
	"github.com/jeranaias/mgchat/internal/offline"
	"github.com/jeranaias/mgchat/internal/router"
	"github.com/jeranaias/mgchat/internal/store"
)

func newPipeline(t *testing.T, srvURL string) (*Pipeline, *auth.TokenStore) {
	t.Helper()
	t.Cleanup(offline.Reset)

	local, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	client := api.NewClient(api.ClientConfig{BaseURL: srvURL})
	tokens, err := auth.NewTokenStore(t.TempDir())
	require.NoError(t, err)
	gate := auth.NewGate(client, tokens, nil)
	repo := store.NewRepository(local, nil, client, gate.Authenticated, nil)

	p := New(Options{
		Repo:   repo,
		Router: router.New(client, nil, false, nil),
		Gate:   gate,
	})
	return p, tokens
}

// waitFor drains events until one of kind k arrives.
func waitFor(t *testing.T, p *Pipeline, k EventKind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			if ev.Kind == k {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", k)
		}
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestSubmitStreamedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "say hello", req.Message)
		assert.Nil(t, req.ConversationID)
		assert.NotEmpty(t, req.SystemPrompt)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"conversation_id": "srv-1"}`))
		flush(w)
		for _, chunk := range []string{"Hel", "lo ", "world"} {
			w.Write([]byte(chunk))
			flush(w)
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer srv.Close()

	p, _ := newPipeline(t, srv.URL)
	require.True(t, p.Submit("say hello"))

	done := waitFor(t, p, EventDone)
	assert.Equal(t, "Hello world", done.Message.Content)
	assert.Equal(t, router.ServedRemote, done.Served)

	conv := p.Conversation()
	require.NotNil(t, conv)
	// The metadata chunk adopted the server id mid-stream.
	assert.Equal(t, "srv-1", conv.ID)
	// Exactly the user message and the reply.
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, "say hello", conv.Messages[0].Content)
	assert.Equal(t, "Hello world", conv.Messages[1].Content)
	assert.False(t, conv.Messages[1].Streaming)
	assert.Equal(t, StateIdle, p.State())
}

func TestSubmitSingleShotReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ChatResponse{Response: "complete answer"})
	}))
	defer srv.Close()

	p, _ := newPipeline(t, srv.URL)
	require.True(t, p.Submit("question"))

	done := waitFor(t, p, EventDone)
	assert.Equal(t, "complete answer", done.Message.Content)

	conv := p.Conversation()
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, StateIdle, p.State())
}

func TestSubmitWhileBusyIsSilentlyIgnored(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ChatResponse{Response: "late"})
	}))
	defer srv.Close()

	p, _ := newPipeline(t, srv.URL)
	require.True(t, p.Submit("first"))
	waitFor(t, p, EventState)

	// The second submission vanishes without a trace.
	assert.False(t, p.Submit("second"))
	close(release)
	waitFor(t, p, EventDone)

	conv := p.Conversation()
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, "first", conv.Messages[0].Content)
}

func TestSubmitBlankInput(t *testing.T) {
	p, _ := newPipeline(t, "http://127.0.0.1:1")
	assert.False(t, p.Submit("   "))
	assert.Nil(t, p.Conversation())
}

func TestSubmitBlockedWhileRecording(t *testing.T) {
	p, _ := newPipeline(t, "http://127.0.0.1:1")
	p.SetRecording(true)
	assert.False(t, p.Submit("dictated text"))
	p.SetRecording(false)
}

func TestCancelKeepsPartialReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial thought"))
		flush(w)
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	p, _ := newPipeline(t, srv.URL)
	require.True(t, p.Submit("long question"))
	waitFor(t, p, EventDelta)

	require.True(t, p.Cancel())
	ev := waitFor(t, p, EventError)
	assert.Equal(t, api.ErrTypeAbortedByUser, api.TypeOf(ev.Err))

	conv := p.Conversation()
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, "partial thought", conv.Messages[1].Content)
	assert.False(t, conv.Messages[1].Streaming)
	assert.Equal(t, StateIdle, p.State())
}

func TestErrorRemovesEmptyPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := newPipeline(t, srv.URL)
	require.True(t, p.Submit("hello"))

	ev := waitFor(t, p, EventError)
	assert.Equal(t, api.ErrTypeServerUnavailable, api.TypeOf(ev.Err))

	conv := p.Conversation()
	// The user message stays; the empty assistant placeholder is gone.
	require.Equal(t, 1, conv.MessageCount())
	assert.Equal(t, StateIdle, p.State())
}

func TestAuthFailureDuringChatInvalidatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, tokens := newPipeline(t, srv.URL)
	require.NoError(t, tokens.Save("stale-jwt"))

	var redirects atomic.Int32
	// The gate inside the pipeline owns the redirect.
	pGate := pipelineGate(p)
	pGate.OnRedirect(func() { redirects.Add(1) })

	require.True(t, p.Submit("hello"))
	ev := waitFor(t, p, EventError)
	assert.Equal(t, api.ErrTypeUnauthorized, api.TypeOf(ev.Err))
	var ce *api.ClientError
	require.ErrorAs(t, ev.Err, &ce)
	assert.Equal(t, api.MsgSessionExpired, ce.UserMessage())

	assert.Eventually(t, func() bool { return redirects.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.False(t, tokens.Exists())
}

func TestLimitReachedDuringChatInvalidatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p, tokens := newPipeline(t, srv.URL)
	require.NoError(t, tokens.Save("quota-jwt"))

	var redirects atomic.Int32
	pipelineGate(p).OnRedirect(func() { redirects.Add(1) })

	require.True(t, p.Submit("hello"))
	ev := waitFor(t, p, EventError)
	assert.Equal(t, api.ErrTypeLimitReached, api.TypeOf(ev.Err))

	assert.Eventually(t, func() bool { return redirects.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.False(t, tokens.Exists())
}

// pipelineGate reaches the gate wired into the pipeline under test.
func pipelineGate(p *Pipeline) *auth.Gate {
	return p.gate
}

func TestRetryResubmitsLastUserMessage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req api.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "flaky question", req.Message)
		assert.Empty(t, req.History)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ChatResponse{Response: "second time lucky"})
	}))
	defer srv.Close()

	p, _ := newPipeline(t, srv.URL)
	require.True(t, p.Submit("flaky question"))
	waitFor(t, p, EventError)

	require.True(t, p.Retry())
	done := waitFor(t, p, EventDone)
	assert.Equal(t, "second time lucky", done.Message.Content)

	conv := p.Conversation()
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, "flaky question", conv.Messages[0].Content)
}

func TestRevealStateBlocksSubmission(t *testing.T) {
	p, _ := newPipeline(t, "http://127.0.0.1:1")
	require.True(t, p.BeginReveal())
	assert.Equal(t, StateAwaiting, p.State())
	assert.False(t, p.Submit("blocked"))
	p.EndReveal()
	assert.Equal(t, StateIdle, p.State())
}

func TestEmptyStreamSurfacesEmptyResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, _ := newPipeline(t, srv.URL)
	require.True(t, p.Submit("hello"))
	ev := waitFor(t, p, EventError)
	assert.Equal(t, api.ErrTypeMalformedResponse, api.TypeOf(ev.Err))
	var ce *api.ClientError
	require.ErrorAs(t, ev.Err, &ce)
	assert.Equal(t, api.MsgEmptyResponse, ce.UserMessage())
}
