// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/auth"
	"github.com/jeranaias/mgchat/internal/commands"
	"github.com/jeranaias/mgchat/internal/config"
	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/pipeline"
	"github.com/jeranaias/mgchat/internal/render"
	"github.com/jeranaias/mgchat/internal/router"
	"github.com/jeranaias/mgchat/internal/speech"
	"github.com/jeranaias/mgchat/internal/store"
)

func newTestModel(t *testing.T) Model {
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

	env := &commands.Env{
		Ctx:        context.Background(),
		Pipeline:   pipeline.New(pipeline.Options{Repo: repo, Router: router.New(client, nil, false, nil), Gate: gate}),
		Repo:       repo,
		Gate:       gate,
		Speaker:    speech.NewSpeaker(false, "m1", nil),
		Config:     config.Default(),
		ConfigPath: filepath.Join(dir, "config.toml"),
	}

	m := New(Options{
		Env:      env,
		Registry: commands.NewRegistry(),
		Renderer: render.New(80, true),
	})
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return resized.(Model)
}

func TestSidebarLoadedClampsSelection(t *testing.T) {
	m := newTestModel(t)
	m.sidebarSelected = 5

	updated, _ := m.Update(SidebarLoadedMsg{Items: []model.ConversationMeta{{ID: "a"}, {ID: "b"}}})
	m = updated.(Model)
	assert.Equal(t, 1, m.sidebarSelected)

	updated, _ = m.Update(SidebarLoadedMsg{Items: nil})
	m = updated.(Model)
	assert.Equal(t, 0, m.sidebarSelected)
}

func TestSidebarToggleIsPersisted(t *testing.T) {
	m := newTestModel(t)
	wasVisible := m.sidebarVisible

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlB})
	m = updated.(Model)
	assert.Equal(t, !wasVisible, m.sidebarVisible)
	assert.Equal(t, !wasVisible, m.env.Config.UI.SidebarVisible)

	cfg, err := config.Load(m.env.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, !wasVisible, cfg.UI.SidebarVisible)
}

func TestDeltaEventUpdatesTranscript(t *testing.T) {
	m := newTestModel(t)
	conv, err := m.env.Repo.Create()
	require.NoError(t, err)
	reply := conv.AddAssistantMessage()
	reply.Content = "partial"
	m.env.Pipeline.SetConversation(conv)

	updated, _ := m.Update(PipelineEventMsg{Event: pipeline.Event{Kind: pipeline.EventDelta, Delta: "partial"}})
	m = updated.(Model)
	assert.False(t, m.thinking)
	assert.True(t, m.deltasSeen)
	assert.Contains(t, m.viewport.View(), "partial")
}

func TestErrorEventShowsToast(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(PipelineEventMsg{Event: pipeline.Event{
		Kind: pipeline.EventError,
		Err:  errors.New("connection refused"),
	}})
	m = updated.(Model)
	require.NotNil(t, m.toast)
	assert.True(t, m.toast.isErr)
	assert.Contains(t, m.toast.text, "connection refused")
}

func TestToastExpiresOnlyForMatchingSeq(t *testing.T) {
	m := newTestModel(t)
	m.pushToast("first", false)
	seq := m.toast.seq

	updated, _ := m.Update(ToastExpireMsg{Seq: seq - 1})
	m = updated.(Model)
	assert.NotNil(t, m.toast)

	updated, _ = m.Update(ToastExpireMsg{Seq: seq})
	m = updated.(Model)
	assert.Nil(t, m.toast)
}

func TestRevealTickAdvancesAndEndsReveal(t *testing.T) {
	m := newTestModel(t)
	conv, err := m.env.Repo.Create()
	require.NoError(t, err)
	reply := conv.AddAssistantMessage()
	reply.Content = "one two"
	reply.Finalize()
	m.env.Pipeline.SetConversation(conv)

	require.True(t, m.env.Pipeline.BeginReveal())
	m.revealMsgID = reply.ID
	m.revealReqID = "req-1"
	m.revealTokens = render.SplitTokens(reply.Content)

	updated, cmd := m.Update(RevealTickMsg{RequestID: "req-1"})
	m = updated.(Model)
	assert.Equal(t, "one ", m.revealShown)
	assert.NotNil(t, cmd)
	assert.Equal(t, pipeline.StateAwaiting, m.env.Pipeline.State())

	updated, _ = m.Update(RevealTickMsg{RequestID: "req-1"})
	m = updated.(Model)
	assert.Equal(t, "one two", m.revealShown)
	assert.Equal(t, pipeline.StateIdle, m.env.Pipeline.State())
	assert.Empty(t, m.revealMsgID)
}

func TestStaleRevealTickIgnored(t *testing.T) {
	m := newTestModel(t)
	m.revealReqID = "current"
	m.revealTokens = []string{"a"}

	updated, cmd := m.Update(RevealTickMsg{RequestID: "stale"})
	m = updated.(Model)
	assert.Empty(t, m.revealShown)
	assert.Nil(t, cmd)
}

func TestLoginFormFieldCycling(t *testing.T) {
	f := newLoginForm()
	f.show()
	assert.Equal(t, 0, f.field)
	f.nextField()
	assert.Equal(t, 1, f.field)
	f.nextField()
	assert.Equal(t, 0, f.field)
}

func TestPluralSynced(t *testing.T) {
	assert.Equal(t, "Synced 1 conversation.", pluralSynced(1))
	assert.Equal(t, "Synced 3 conversations.", pluralSynced(3))
}
