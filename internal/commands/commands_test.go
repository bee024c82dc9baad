// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/auth"
	"github.com/jeranaias/mgchat/internal/config"
	"github.com/jeranaias/mgchat/internal/pipeline"
	"github.com/jeranaias/mgchat/internal/router"
	"github.com/jeranaias/mgchat/internal/speech"
	"github.com/jeranaias/mgchat/internal/store"
)

func newEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()

	client := api.NewClient(api.ClientConfig{BaseURL: "http://127.0.0.1:1"})
	tokens, err := auth.NewTokenStore(filepath.Join(dir, "keys"))
	require.NoError(t, err)
	gate := auth.NewGate(client, tokens, nil)

	local, err := store.NewLocalStore(filepath.Join(dir, "conversations"))
	require.NoError(t, err)
	index, err := store.OpenIndex(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	repo := store.NewRepository(local, index, client, gate.Authenticated, nil)

	pipe := pipeline.New(pipeline.Options{
		Repo:   repo,
		Router: router.New(client, nil, false, nil),
		Gate:   gate,
	})

	cfg := config.Default()
	return &Env{
		Ctx:        context.Background(),
		Pipeline:   pipe,
		Repo:       repo,
		Gate:       gate,
		Client:     client,
		Speaker:    speech.NewSpeaker(false, "m1", nil),
		Config:     cfg,
		ConfigPath: filepath.Join(dir, "config.toml"),
	}
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("/help"))
	assert.True(t, IsCommand("  /new"))
	assert.False(t, IsCommand("hello /world"))
	assert.False(t, IsCommand(""))
}

func TestUnknownCommand(t *testing.T) {
	env := newEnv(t)
	_, err := NewRegistry().Execute(env, "/bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/help")
}

func TestNewCreatesConversation(t *testing.T) {
	env := newEnv(t)
	res, err := NewRegistry().Execute(env, "/new")
	require.NoError(t, err)
	assert.True(t, res.RefreshSidebar)
	assert.True(t, res.ClearTranscript)
	require.NotNil(t, env.Pipeline.Conversation())

	metas, err := env.Repo.List(env.Ctx)
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func TestListAndOpenByNumber(t *testing.T) {
	env := newEnv(t)
	reg := NewRegistry()
	_, err := reg.Execute(env, "/new")
	require.NoError(t, err)
	active := env.Pipeline.Conversation()
	active.AddUserMessage("hello")
	require.NoError(t, env.Repo.Persist(active))

	res, err := reg.Execute(env, "/list")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "1.")
	assert.Contains(t, res.Output, "(1 messages)")

	res, err = reg.Execute(env, "/open 1")
	require.NoError(t, err)
	assert.Equal(t, active.ID, res.OpenConversation)

	_, err = reg.Execute(env, "/open 5")
	assert.Error(t, err)
}

func TestDeleteActiveClearsTranscript(t *testing.T) {
	env := newEnv(t)
	reg := NewRegistry()
	_, err := reg.Execute(env, "/new")
	require.NoError(t, err)
	id := env.Pipeline.Conversation().ID

	res, err := reg.Execute(env, "/delete "+id)
	require.NoError(t, err)
	assert.True(t, res.ClearTranscript)
	assert.Nil(t, env.Pipeline.Conversation())
}

func TestRename(t *testing.T) {
	env := newEnv(t)
	reg := NewRegistry()
	_, err := reg.Execute(env, "/new")
	require.NoError(t, err)

	res, err := reg.Execute(env, "/rename Trip planning")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Trip planning")
	assert.Equal(t, "Trip planning", env.Pipeline.Conversation().Title)

	metas, err := env.Repo.List(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", metas[0].Title)
}

func TestRenameWithoutConversation(t *testing.T) {
	env := newEnv(t)
	_, err := NewRegistry().Execute(env, "/rename anything")
	assert.Error(t, err)
}

func TestSearchFindsPersistedContent(t *testing.T) {
	env := newEnv(t)
	reg := NewRegistry()
	_, err := reg.Execute(env, "/new")
	require.NoError(t, err)
	conv := env.Pipeline.Conversation()
	conv.AddUserMessage("the capital of iceland")
	require.NoError(t, env.Repo.Persist(conv))

	res, err := reg.Execute(env, "/search iceland")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(res.Output), "iceland")

	res, err = reg.Execute(env, "/search quasar")
	require.NoError(t, err)
	assert.Equal(t, "No matches.", res.Output)
}

func TestLangPersistsToConfig(t *testing.T) {
	env := newEnv(t)
	reg := NewRegistry()

	res, err := reg.Execute(env, "/lang")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "auto")

	_, err = reg.Execute(env, "/lang ar")
	require.NoError(t, err)
	assert.Equal(t, "ar", env.Config.Generation.Language)

	data, err := os.ReadFile(env.ConfigPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `language = "ar"`)

	_, err = reg.Execute(env, "/lang auto")
	require.NoError(t, err)
	assert.Empty(t, env.Config.Generation.Language)
}

func TestTTSRequiresEngine(t *testing.T) {
	env := newEnv(t)
	// The test speaker has no engine lookup stub, so Available depends on
	// the host. Only assert the argument validation path.
	_, err := NewRegistry().Execute(env, "/tts maybe")
	assert.Error(t, err)
	_, err = NewRegistry().Execute(env, "/tts")
	assert.Error(t, err)
}

func TestExportWritesFile(t *testing.T) {
	env := newEnv(t)
	reg := NewRegistry()
	_, err := reg.Execute(env, "/new")
	require.NoError(t, err)
	conv := env.Pipeline.Conversation()
	conv.AddUserMessage("export me")

	path := filepath.Join(t.TempDir(), "out.md")
	res, err := reg.Execute(env, "/export "+path)
	require.NoError(t, err)
	assert.Contains(t, res.Output, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "export me")
}

func TestLoginPromptsWhenLoggedOut(t *testing.T) {
	env := newEnv(t)
	res, err := NewRegistry().Execute(env, "/login")
	require.NoError(t, err)
	assert.True(t, res.LoginPrompt)
}

func TestSyncRequiresLogin(t *testing.T) {
	env := newEnv(t)
	_, err := NewRegistry().Execute(env, "/sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/login")
}

func TestProfileRequiresLoginAndValidField(t *testing.T) {
	env := newEnv(t)
	_, err := NewRegistry().Execute(env, "/profile shoe 42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage:")

	_, err = NewRegistry().Execute(env, "/profile username mika")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/login")
}

func TestQuit(t *testing.T) {
	env := newEnv(t)
	res, err := NewRegistry().Execute(env, "/quit")
	require.NoError(t, err)
	assert.True(t, res.Quit)
}

func TestHelpListsEveryCommand(t *testing.T) {
	env := newEnv(t)
	res, err := NewRegistry().Execute(env, "/help")
	require.NoError(t, err)
	for _, name := range []string{"/new", "/open", "/delete", "/rename", "/retry", "/search", "/lang", "/tts", "/export", "/settings", "/profile", "/login", "/logout", "/sync", "/offline", "/quit", "/help"} {
		assert.Contains(t, res.Output, name)
	}
}
