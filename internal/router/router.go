// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router decides, per message, whether the chat service or the
// local runtime answers. The choice is made before the request goes out;
// a failed request is reported, never silently retried on the other path.
package router

import (
	"context"
	"io"
	"log/slog"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/local"
	"github.com/jeranaias/mgchat/internal/offline"
)

// Served names the path that produced a reply.
type Served string

const (
	ServedRemote Served = "remote"
	ServedLocal  Served = "local"
)

// Router dispatches chat requests to the remote service or the local
// runtime based on connectivity and configuration.
type Router struct {
	client  *api.Client
	runtime *local.Runtime

	// forceLocal pins every request to the local runtime regardless of
	// connectivity.
	forceLocal bool

	log *slog.Logger
}

// New creates a router. runtime may be nil when no local fallback is
// configured.
func New(client *api.Client, runtime *local.Runtime, forceLocal bool, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		client:     client,
		runtime:    runtime,
		forceLocal: forceLocal,
		log:        logger,
	}
}

// Pick returns the path the next request will take.
func (r *Router) Pick() Served {
	if r.forceLocal {
		return ServedLocal
	}
	if offline.IsOffline() && r.runtime != nil {
		return ServedLocal
	}
	return ServedRemote
}

// Chat sends one chat request down the picked path. Deltas arrive through
// cb; the full reply, stream metadata (remote only), and the serving path
// are returned.
func (r *Router) Chat(ctx context.Context, req api.ChatRequest, cb api.StreamCallback) (string, *api.ChatMeta, Served, error) {
	served := r.Pick()
	r.log.Debug("routing chat request", "served", string(served))

	switch served {
	case ServedLocal:
		if r.runtime == nil {
			return "", nil, served, api.NewError(api.ErrTypeLocalModelUnavailable,
				"no local runtime configured", nil)
		}
		content, meta, err := r.runtime.Chat(ctx, req, cb)
		return content, meta, served, err
	default:
		content, meta, err := r.client.Chat(ctx, req, cb)
		return content, meta, served, err
	}
}

// Transcribe routes audio decoding: the remote transcription endpoint when
// online, the local audio model otherwise.
func (r *Router) Transcribe(ctx context.Context, path, conversationID string) (string, Served, error) {
	if r.Pick() == ServedLocal {
		if r.runtime == nil {
			return "", ServedLocal, api.NewError(api.ErrTypeLocalModelUnavailable,
				"no local runtime configured", nil)
		}
		text, err := r.runtime.Transcribe(ctx, path)
		return text, ServedLocal, err
	}
	resp, err := r.client.TranscribeAudio(ctx, path, conversationID)
	if err != nil {
		return "", ServedRemote, err
	}
	return resp.Response, ServedRemote, nil
}
