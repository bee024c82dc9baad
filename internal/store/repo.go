// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/offline"
)

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository is the single entry point for conversation persistence. Logged
// in and online it works against the server and mirrors every result into
// the local store; offline or anonymous it works against the local store
// alone. On conflict the server copy wins.
type Repository struct {
	local  *LocalStore
	index  *SearchIndex
	client *api.Client
	authed func() bool
	log    *slog.Logger
}

// NewRepository wires the storage layers together. authed reports the
// current login state; a nil index disables search.
func NewRepository(local *LocalStore, index *SearchIndex, client *api.Client, authed func() bool, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if authed == nil {
		authed = func() bool { return false }
	}
	return &Repository{
		local:  local,
		index:  index,
		client: client,
		authed: authed,
		log:    logger,
	}
}

// remoteActive reports whether the server side is usable right now.
func (r *Repository) remoteActive() bool {
	return r.authed() && !offline.IsOffline()
}

// Local exposes the underlying local store for the directory watcher.
func (r *Repository) Local() *LocalStore {
	return r.local
}

// =============================================================================
// CRUD
// =============================================================================

// Create starts a new local-only conversation and persists it.
func (r *Repository) Create() (*model.Conversation, error) {
	conv := model.NewConversation()
	if err := r.Persist(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Persist writes the conversation to the local mirror and the search index.
// Every mutation funnels through here, whichever side produced it.
func (r *Repository) Persist(conv *model.Conversation) error {
	if err := r.local.Save(conv); err != nil {
		return err
	}
	if r.index != nil {
		if err := r.index.IndexConversation(conv); err != nil {
			r.log.Warn("search index update failed", "conversation", conv.ID, "error", err)
		}
	}
	return nil
}

// List returns the sidebar entries. When the server is usable its list is
// merged with conversations that only exist locally; otherwise the local
// cache serves alone.
func (r *Repository) List(ctx context.Context) ([]model.ConversationMeta, error) {
	localMetas, err := r.local.List()
	if err != nil {
		return nil, err
	}
	if !r.remoteActive() {
		return localMetas, nil
	}

	remote, err := r.client.ListConversations(ctx)
	if err != nil {
		r.log.Warn("remote list failed, serving local cache", "error", err)
		return localMetas, nil
	}

	seen := make(map[string]bool, len(remote))
	metas := make([]model.ConversationMeta, 0, len(remote))
	for _, rc := range remote {
		seen[rc.ID] = true
		// Prefer the local mirror for counts and previews; the remote
		// list is titles only.
		if cached, err := r.local.Load(rc.ID); err == nil {
			meta := cached.Meta()
			meta.Title = rc.Title
			metas = append(metas, meta)
			continue
		}
		metas = append(metas, model.ConversationMeta{ID: rc.ID, Title: rc.Title})
	}
	for _, meta := range localMetas {
		if !seen[meta.ID] {
			metas = append(metas, meta)
		}
	}
	return metas, nil
}

// Open loads a conversation. When the server is usable and owns the id the
// remote copy is fetched and mirrored, replacing the local version.
func (r *Repository) Open(ctx context.Context, id string) (*model.Conversation, error) {
	if r.remoteActive() && !isLocalID(id) {
		rc, err := r.client.GetConversation(ctx, id)
		if err == nil {
			conv := fromRemote(rc)
			if cached, cerr := r.local.Load(id); cerr == nil {
				conv.CreatedAt = cached.CreatedAt
			}
			if perr := r.Persist(conv); perr != nil {
				r.log.Warn("failed to mirror conversation", "conversation", id, "error", perr)
			}
			return conv, nil
		}
		r.log.Warn("remote open failed, trying local cache", "conversation", id, "error", err)
	}
	return r.local.Load(id)
}

// Delete removes a conversation everywhere it exists. The local copy is
// always removed; the remote delete is attempted when the server owns the id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	localErr := r.local.Delete(id)
	if r.index != nil {
		if err := r.index.Remove(id); err != nil {
			r.log.Warn("search index remove failed", "conversation", id, "error", err)
		}
	}
	if r.remoteActive() && !isLocalID(id) {
		if err := r.client.DeleteConversation(ctx, id); err != nil {
			return err
		}
		return nil
	}
	return localErr
}

// Rename updates a conversation title locally and, when possible, remotely.
func (r *Repository) Rename(ctx context.Context, id, title string) error {
	conv, err := r.local.Load(id)
	if err == nil {
		conv.SetTitle(title)
		if perr := r.Persist(conv); perr != nil {
			return perr
		}
	} else if err != ErrNotFound {
		return err
	}
	if r.remoteActive() && !isLocalID(id) {
		return r.client.UpdateConversationTitle(ctx, id, title)
	}
	return nil
}

// AdoptServerID re-keys a local-only conversation once the server assigns
// it an identity, typically from stream metadata mid-chat.
func (r *Repository) AdoptServerID(localID, serverID string) error {
	if localID == serverID || serverID == "" {
		return nil
	}
	if err := r.local.Rekey(localID, serverID); err != nil {
		return err
	}
	if r.index != nil {
		if err := r.index.Rekey(localID, serverID); err != nil {
			r.log.Warn("search index rekey failed", "from", localID, "to", serverID, "error", err)
		}
	}
	return nil
}

// Search queries the full-text index over message content.
func (r *Repository) Search(query string, limit int) ([]SearchHit, error) {
	if r.index == nil {
		return nil, nil
	}
	return r.index.Search(query, limit)
}

// =============================================================================
// SYNC ON LOGIN
// =============================================================================

// SyncOnLogin pushes conversations created while logged out to the server
// and re-keys them to the identities the server assigns. Returns the number
// of conversations synced.
func (r *Repository) SyncOnLogin(ctx context.Context) (int, error) {
	locals, err := r.local.ListLocalOnly()
	if err != nil {
		return 0, err
	}
	if len(locals) == 0 {
		return 0, nil
	}

	req := api.SyncRequest{Conversations: make([]api.SyncConversation, 0, len(locals))}
	for _, conv := range locals {
		req.Conversations = append(req.Conversations, toSync(conv))
	}

	resp, err := r.client.SyncConversations(ctx, req)
	if err != nil {
		return 0, err
	}

	synced := 0
	for i, result := range resp.Conversations {
		if result.ConversationID == "" {
			continue
		}
		if err := r.AdoptServerID(locals[i].ID, result.ConversationID); err != nil {
			r.log.Warn("failed to adopt server id", "conversation", locals[i].ID, "error", err)
			continue
		}
		if result.Title != "" {
			if conv, lerr := r.local.Load(result.ConversationID); lerr == nil {
				conv.SetTitle(result.Title)
				r.Persist(conv)
			}
		}
		synced++
	}
	r.log.Info("conversation sync complete", "pushed", len(locals), "adopted", synced)
	return synced, nil
}

// =============================================================================
// WIRE CONVERSION
// =============================================================================

// isLocalID reports whether the id was minted locally and is unknown to the
// server.
func isLocalID(id string) bool {
	return model.IsLocalID(id)
}

// fromRemote converts a server conversation into the transcript model.
func fromRemote(rc *api.RemoteConversation) *model.Conversation {
	conv := &model.Conversation{
		ID:        rc.ID,
		Title:     rc.Title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	for _, rm := range rc.Messages {
		conv.Messages = append(conv.Messages, &model.Message{
			ID:        uuid.NewString(),
			Role:      model.Role(rm.Role),
			Content:   rm.Content,
			CreatedAt: time.Now(),
		})
	}
	return conv
}

// toSync converts a local conversation into the sync wire form. The id is
// omitted so the server assigns one.
func toSync(conv *model.Conversation) api.SyncConversation {
	sc := api.SyncConversation{Title: conv.DisplayTitle()}
	for _, msg := range conv.Messages {
		if msg.Streaming || msg.IsEmpty() {
			continue
		}
		sc.Messages = append(sc.Messages, api.RemoteMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return sc
}
