// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/mgchat/internal/commands"
)

// sidebarWidth is the fixed column width of the conversation list.
const sidebarWidth = 32

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.Resize(msg.Width, msg.Height)

	// header + input area + status bar
	const reservedHeight = 1 + 3 + 1
	vpHeight := m.height - reservedHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := m.width
	if m.sidebarVisible {
		vpWidth -= sidebarWidth
	}
	if vpWidth < 20 {
		vpWidth = 20
	}

	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.renderer.SetWidth(vpWidth - 4)

	inputWidth := m.width - 8
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.updateTranscript()
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+q" {
		return m, tea.Quit
	}

	if m.focus == focusLogin {
		return m.handleLoginKey(msg)
	}

	switch key {
	case "ctrl+c":
		// Cancel an in-flight reply first; quit when idle.
		if m.env.Pipeline.Cancel() {
			return m, nil
		}
		return m, tea.Quit

	case "esc":
		if m.env.Pipeline.Cancel() {
			return m, nil
		}
		if m.focus == focusSidebar {
			m.focus = focusInput
			m.input.Focus()
			return m, textinput.Blink
		}
		return m, nil

	case "ctrl+b":
		return m.toggleSidebar()

	case "ctrl+n":
		return m.runCommand("/new")

	case "ctrl+r":
		return m.runCommand("/retry")

	case "tab":
		if m.sidebarVisible && m.focus == focusInput && m.input.Value() == "" {
			m.focus = focusSidebar
			m.input.Blur()
			return m, nil
		}
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(key)
	}

	switch key {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if commands.IsCommand(text) {
			m.input.Reset()
			return m.runCommand(text)
		}
		if !m.env.Pipeline.Submit(text) {
			return m, m.showError(fmt.Errorf("a reply is still in progress"))
		}
		m.input.Reset()
		m.served = ""
		return m, nil

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.sidebarSelected > 0 {
			m.sidebarSelected--
		}
		return m, nil

	case "down", "j":
		if m.sidebarSelected < len(m.sidebarItems)-1 {
			m.sidebarSelected++
		}
		return m, nil

	case "enter":
		if m.sidebarSelected < len(m.sidebarItems) {
			return m, m.openConversation(m.sidebarItems[m.sidebarSelected].ID)
		}
		return m, nil

	case "d":
		if m.sidebarSelected < len(m.sidebarItems) {
			return m.runCommand("/delete " + m.sidebarItems[m.sidebarSelected].ID)
		}
		return m, nil

	case "n":
		return m.runCommand("/new")
	}
	return m, nil
}

func (m Model) toggleSidebar() (tea.Model, tea.Cmd) {
	m.sidebarVisible = !m.sidebarVisible
	if !m.sidebarVisible && m.focus == focusSidebar {
		m.focus = focusInput
		m.input.Focus()
	}
	m.env.Config.UI.SidebarVisible = m.sidebarVisible
	if err := m.env.Config.Save(m.env.ConfigPath); err != nil {
		return m, m.showError(err)
	}
	// Re-run the layout with the new column widths.
	return m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	res, err := m.registry.Execute(m.env, line)
	if err != nil {
		return m, m.showError(err)
	}

	var cmds []tea.Cmd
	if res.Quit {
		return m, tea.Quit
	}
	if res.Output != "" {
		cmds = append(cmds, m.showInfo(res.Output))
	}
	if res.ClearTranscript {
		m.updateTranscript()
	}
	if res.RefreshSidebar {
		cmds = append(cmds, m.loadSidebar())
	}
	if res.OpenConversation != "" {
		cmds = append(cmds, m.openConversation(res.OpenConversation))
	}
	if res.LoginPrompt {
		m.login.show()
		m.focus = focusLogin
		m.input.Blur()
		cmds = append(cmds, m.login.focusCmd())
	}
	return m, tea.Batch(cmds...)
}

func pluralSynced(count int) string {
	if count == 1 {
		return "Synced 1 conversation."
	}
	return fmt.Sprintf("Synced %d conversations.", count)
}
