// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/offline"
	"github.com/jeranaias/mgchat/internal/router"
)

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading..."
	}

	if m.login.visible {
		return m.renderLoginOverlay()
	}

	body := m.viewport.View()
	if m.sidebarVisible {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}

	sections := []string{
		m.renderHeader(),
		body,
		m.renderInput(),
		m.renderStatusBar(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	title := "mgchat"
	if conv := m.env.Pipeline.Conversation(); conv != nil {
		title += " - " + conv.DisplayTitle()
	}
	return m.theme.Header.Width(m.width).Render(title)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	height := m.viewport.Height
	var sb strings.Builder
	sb.WriteString(m.theme.SidebarTitle.Render("Conversations"))
	sb.WriteString("\n")

	if len(m.sidebarItems) == 0 {
		sb.WriteString(m.theme.SidebarEmptyNotice.Render("No conversations yet"))
	}

	active := ""
	if conv := m.env.Pipeline.Conversation(); conv != nil {
		active = conv.ID
	}

	// Row budget: title line plus one line per conversation.
	maxRows := height - 2
	for i, item := range m.sidebarItems {
		if i >= maxRows {
			break
		}
		label := item.Title
		if label == "" {
			label = "New Conversation"
		}
		if item.LocalOnly {
			label = m.theme.SidebarLocalBadge.Render("+") + " " + label
		}
		label = runewidth.Truncate(label, sidebarWidth-4, "...")

		style := m.theme.SidebarItem
		if m.focus == focusSidebar && i == m.sidebarSelected {
			style = m.theme.SidebarItemActive
		} else if item.ID == active {
			style = m.theme.SidebarItem.Bold(true)
		}
		sb.WriteString(style.Render(label))
		sb.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(sidebarWidth - 1).
		Height(height).
		Render(sb.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// updateTranscript re-renders the conversation into the viewport.
func (m *Model) updateTranscript() {
	conv := m.env.Pipeline.Conversation()
	if conv == nil {
		m.viewport.SetContent(m.theme.SystemNotice.Render("\nStart typing to begin a conversation.\n"))
		return
	}

	width := m.viewport.Width - 6
	if width < 20 {
		width = 20
	}

	var sb strings.Builder
	for _, msg := range conv.Messages {
		content := msg.Content
		if msg.ID == m.revealMsgID {
			content = m.revealShown
		}

		switch msg.Role {
		case model.RoleUser:
			bubble := m.theme.UserBubble.Width(width).Render(content)
			sb.WriteString(lipgloss.PlaceHorizontal(m.viewport.Width, lipgloss.Right, bubble))
		case model.RoleAssistant:
			if msg.Streaming && content == "" {
				continue
			}
			rendered := m.renderer.Render(content)
			sb.WriteString(m.theme.AssistantBubble.Width(width).Render(strings.TrimRight(rendered, "\n")))
		default:
			sb.WriteString(m.theme.SystemNotice.Width(m.viewport.Width).Render(content))
		}
		sb.WriteString("\n\n")
	}

	if m.thinking {
		sb.WriteString(m.theme.Thinking.Render(m.spinner.View() + " thinking..."))
		sb.WriteString("\n")
	}

	m.viewport.SetContent(sb.String())
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	var right string
	if m.env.Pipeline.Recording() {
		right = m.theme.RecordingBadge.Render("REC")
	}
	line := m.input.View()
	if right != "" {
		gap := m.width - lipgloss.Width(line) - lipgloss.Width(right) - 4
		if gap > 0 {
			line += strings.Repeat(" ", gap) + right
		}
	}
	return m.theme.InputContainer.Width(m.width - 2).Render(line)
}

func (m Model) renderStatusBar() string {
	var segments []string

	if m.env.Gate.Authenticated() {
		segments = append(segments, m.theme.AuthOn.Render("logged in"))
	} else {
		segments = append(segments, m.theme.AuthOff.Render("anonymous"))
	}

	if offline.IsOffline() {
		segments = append(segments, m.theme.OfflineBadge.Render("OFFLINE"))
	}

	switch m.served {
	case router.ServedLocal:
		segments = append(segments, m.theme.ServedLocal.Render("local model"))
	case router.ServedRemote:
		segments = append(segments, m.theme.ServedRemote.Render("server"))
	}

	if m.toast != nil {
		if m.toast.isErr {
			segments = append(segments, m.theme.ErrorToast.UnsetBorderStyle().Render(m.toast.text))
		} else {
			segments = append(segments, m.theme.InfoToast.UnsetBorderStyle().Render(m.toast.text))
		}
	}

	left := strings.Join(segments, "  ")
	help := m.theme.ShortcutKey.Render("ctrl+b") + m.theme.ShortcutDesc.Render(" sidebar  ") +
		m.theme.ShortcutKey.Render("/help") + m.theme.ShortcutDesc.Render(" commands")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + help)
}

// =============================================================================
// LOGIN OVERLAY
// =============================================================================

func (m Model) renderLoginOverlay() string {
	var sb strings.Builder
	sb.WriteString(m.theme.LoginTitle.Render("Log in to MGZon"))
	sb.WriteString("\n\n")
	sb.WriteString(m.theme.LoginField.Render(m.login.email.View()))
	sb.WriteString("\n")
	sb.WriteString(m.theme.LoginField.Render(m.login.password.View()))
	sb.WriteString("\n\n")

	switch {
	case m.login.busy:
		sb.WriteString(m.theme.LoginHint.Render("Signing in..."))
	case m.login.errText != "":
		sb.WriteString(m.theme.ErrorToast.UnsetBorderStyle().Render(m.login.errText))
	default:
		sb.WriteString(m.theme.LoginHint.Render("enter to submit, esc to cancel"))
	}

	box := m.theme.LoginBox.Render(sb.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
