// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/pipeline"
)

// =============================================================================
// MESSAGES
// =============================================================================

// PipelineEventMsg wraps one pipeline event for the Bubble Tea loop.
type PipelineEventMsg struct {
	Event pipeline.Event
}

// SidebarLoadedMsg carries a refreshed conversation list.
type SidebarLoadedMsg struct {
	Items []model.ConversationMeta
	Err   error
}

// ConversationOpenedMsg carries a conversation loaded for display.
type ConversationOpenedMsg struct {
	Conversation *model.Conversation
	Err          error
}

// LoginResultMsg reports the outcome of a login attempt.
type LoginResultMsg struct {
	Err error
}

// SyncDoneMsg reports a finished sync-on-login push.
type SyncDoneMsg struct {
	Count int
	Err   error
}

// StoreChangedMsg fires when another process touched the conversation
// directory.
type StoreChangedMsg struct{}

// ToastExpireMsg dismisses the transient notice identified by Seq.
type ToastExpireMsg struct {
	Seq int
}

// RevealTickMsg advances the paced reveal of a single-shot reply.
type RevealTickMsg struct {
	RequestID string
}

// QuitMsg asks the program to exit after cleanup.
type QuitMsg struct{}

// waitForEvent re-arms the pipeline event pump. Each received event
// schedules the next read.
func waitForEvent(ch <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return QuitMsg{}
		}
		return PipelineEventMsg{Event: ev}
	}
}

// waitForStoreChange re-arms the conversation directory watcher.
func waitForStoreChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		_, ok := <-ch
		if !ok {
			return nil
		}
		return StoreChangedMsg{}
	}
}
