// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/offline"
)

func newLocal(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func newIndex(t *testing.T) *SearchIndex {
	t.Helper()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func seedConversation(content ...string) *model.Conversation {
	conv := model.NewConversation()
	for _, c := range content {
		conv.AddUserMessage(c)
	}
	return conv
}

// =============================================================================
// LOCAL STORE
// =============================================================================

func TestLocalStoreRoundTrip(t *testing.T) {
	s := newLocal(t)
	conv := seedConversation("hello there")
	require.NoError(t, s.Save(conv))

	loaded, err := s.Load(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, loaded.ID)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "hello there", loaded.Messages[0].Content)
}

func TestLocalStoreLoadMissing(t *testing.T) {
	s := newLocal(t)
	_, err := s.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreListOrder(t *testing.T) {
	s := newLocal(t)
	older := seedConversation("first")
	older.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Save(older))
	newer := seedConversation("second")
	require.NoError(t, s.Save(newer))

	metas, err := s.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, newer.ID, metas[0].ID)
	assert.True(t, metas[0].LocalOnly)
}

func TestLocalStoreRekey(t *testing.T) {
	s := newLocal(t)
	conv := seedConversation("offline message")
	require.NoError(t, s.Save(conv))

	require.NoError(t, s.Rekey(conv.ID, "srv-42"))
	assert.False(t, s.Exists(conv.ID))

	moved, err := s.Load("srv-42")
	require.NoError(t, err)
	assert.Equal(t, "srv-42", moved.ID)
	assert.False(t, moved.IsLocalOnly())
}

func TestLocalStoreListLocalOnly(t *testing.T) {
	s := newLocal(t)
	local := seedConversation("never synced")
	require.NoError(t, s.Save(local))
	synced := seedConversation("on the server")
	synced.ID = "srv-1"
	require.NoError(t, s.Save(synced))

	convs, err := s.ListLocalOnly()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, local.ID, convs[0].ID)
}

// =============================================================================
// SEARCH INDEX
// =============================================================================

func TestSearchIndexFindsContent(t *testing.T) {
	idx := newIndex(t)
	conv := seedConversation("how do goroutines work", "tell me about channels")
	conv.SetTitle("Go questions")
	require.NoError(t, idx.IndexConversation(conv))

	hits, err := idx.Search("goroutines", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, conv.ID, hits[0].ConversationID)
	assert.Equal(t, "Go questions", hits[0].Title)
}

func TestSearchIndexPrefixMatch(t *testing.T) {
	idx := newIndex(t)
	conv := seedConversation("recursive descent parsing")
	require.NoError(t, idx.IndexConversation(conv))

	hits, err := idx.Search("pars", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchIndexOneHitPerConversation(t *testing.T) {
	idx := newIndex(t)
	conv := seedConversation("apples are red", "apples are green", "apples are sweet")
	require.NoError(t, idx.IndexConversation(conv))

	hits, err := idx.Search("apples", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchIndexRemove(t *testing.T) {
	idx := newIndex(t)
	conv := seedConversation("ephemeral content")
	require.NoError(t, idx.IndexConversation(conv))
	require.NoError(t, idx.Remove(conv.ID))

	hits, err := idx.Search("ephemeral", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchIndexRekey(t *testing.T) {
	idx := newIndex(t)
	conv := seedConversation("movable content")
	require.NoError(t, idx.IndexConversation(conv))
	require.NoError(t, idx.Rekey(conv.ID, "srv-9"))

	hits, err := idx.Search("movable", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "srv-9", hits[0].ConversationID)
}

func TestSearchIndexEmptyQuery(t *testing.T) {
	idx := newIndex(t)
	hits, err := idx.Search("   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// =============================================================================
// REPOSITORY, OFFLINE / ANONYMOUS
// =============================================================================

func anonymousRepo(t *testing.T) *Repository {
	t.Helper()
	client := api.NewClient(api.ClientConfig{BaseURL: "http://127.0.0.1:1"})
	return NewRepository(newLocal(t), newIndex(t), client, func() bool { return false }, nil)
}

func TestRepositoryAnonymousStaysLocal(t *testing.T) {
	repo := anonymousRepo(t)

	conv, err := repo.Create()
	require.NoError(t, err)
	assert.True(t, conv.IsLocalOnly())

	conv.AddUserMessage("offline note")
	require.NoError(t, repo.Persist(conv))

	metas, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 1)

	loaded, err := repo.Open(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "offline note", loaded.Messages[0].Content)

	require.NoError(t, repo.Delete(context.Background(), conv.ID))
	metas, err = repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestRepositoryPersistUpdatesSearch(t *testing.T) {
	repo := anonymousRepo(t)
	conv, err := repo.Create()
	require.NoError(t, err)
	conv.AddUserMessage("searchable breadcrumb")
	require.NoError(t, repo.Persist(conv))

	hits, err := repo.Search("breadcrumb", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, conv.ID, hits[0].ConversationID)
}

// =============================================================================
// REPOSITORY, LOGGED IN
// =============================================================================

func TestRepositoryOpenMirrorsRemote(t *testing.T) {
	t.Cleanup(offline.Reset)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/srv-7", r.URL.Path)
		json.NewEncoder(w).Encode(api.RemoteConversation{
			ID:    "srv-7",
			Title: "Server copy",
			Messages: []api.RemoteMessage{
				{Role: "user", Content: "remote question"},
				{Role: "assistant", Content: "remote answer"},
			},
		})
	}))
	defer srv.Close()

	local := newLocal(t)
	client := api.NewClient(api.ClientConfig{BaseURL: srv.URL})
	repo := NewRepository(local, newIndex(t), client, func() bool { return true }, nil)

	conv, err := repo.Open(context.Background(), "srv-7")
	require.NoError(t, err)
	assert.Equal(t, "Server copy", conv.Title)
	require.Len(t, conv.Messages, 2)

	// The server copy is now in the local mirror.
	cached, err := local.Load("srv-7")
	require.NoError(t, err)
	assert.Equal(t, "remote answer", cached.Messages[1].Content)
}

func TestRepositoryListMergesLocalOnly(t *testing.T) {
	t.Cleanup(offline.Reset)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]api.RemoteConversation{{ID: "srv-1", Title: "Remote"}})
	}))
	defer srv.Close()

	local := newLocal(t)
	client := api.NewClient(api.ClientConfig{BaseURL: srv.URL})
	repo := NewRepository(local, nil, client, func() bool { return true }, nil)

	orphan := seedConversation("not yet synced")
	require.NoError(t, local.Save(orphan))

	metas, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "srv-1", metas[0].ID)
	assert.Equal(t, orphan.ID, metas[1].ID)
}

func TestRepositoryListFallsBackWhenRemoteFails(t *testing.T) {
	t.Cleanup(offline.Reset)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	local := newLocal(t)
	client := api.NewClient(api.ClientConfig{BaseURL: srv.URL})
	repo := NewRepository(local, nil, client, func() bool { return true }, nil)

	conv := seedConversation("cached")
	require.NoError(t, local.Save(conv))

	metas, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func TestRepositoryDeleteRemote(t *testing.T) {
	t.Cleanup(offline.Reset)
	deleted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/conversations/srv-3", r.URL.Path)
		deleted = true
	}))
	defer srv.Close()

	local := newLocal(t)
	client := api.NewClient(api.ClientConfig{BaseURL: srv.URL})
	repo := NewRepository(local, nil, client, func() bool { return true }, nil)

	conv := seedConversation("doomed")
	conv.ID = "srv-3"
	require.NoError(t, local.Save(conv))

	require.NoError(t, repo.Delete(context.Background(), "srv-3"))
	assert.True(t, deleted)
	assert.False(t, local.Exists("srv-3"))
}

func TestSyncOnLoginRekeysLocalConversations(t *testing.T) {
	t.Cleanup(offline.Reset)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/sync", r.URL.Path)
		var req api.SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Conversations, 2)
		assert.Nil(t, req.Conversations[0].ConversationID)

		json.NewEncoder(w).Encode(api.SyncResponse{Conversations: []api.SyncResult{
			{ConversationID: "srv-10"},
			{ConversationID: "srv-11"},
		}})
	}))
	defer srv.Close()

	local := newLocal(t)
	client := api.NewClient(api.ClientConfig{BaseURL: srv.URL})
	repo := NewRepository(local, newIndex(t), client, func() bool { return true }, nil)

	first := seedConversation("created offline first")
	first.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.Persist(first))
	second := seedConversation("created offline second")
	second.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Persist(second))

	synced, err := repo.SyncOnLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	assert.False(t, local.Exists(first.ID))
	assert.True(t, local.Exists("srv-10"))
	assert.True(t, local.Exists("srv-11"))

	remaining, err := local.ListLocalOnly()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSyncOnLoginNothingToSync(t *testing.T) {
	repo := anonymousRepo(t)
	synced, err := repo.SyncOnLogin(context.Background())
	require.NoError(t, err)
	assert.Zero(t, synced)
}
