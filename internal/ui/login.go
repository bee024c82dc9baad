// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

// loginForm is the in-TUI credential prompt. OAuth flows need a browser and
// stay in the line-mode client.
type loginForm struct {
	visible bool
	busy    bool
	errText string

	email    textinput.Model
	password textinput.Model
	// field is 0 for email, 1 for password.
	field int
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Prompt = "Email:    "
	email.CharLimit = 254

	password := textinput.New()
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 256

	return loginForm{email: email, password: password}
}

func (f *loginForm) show() {
	f.visible = true
	f.busy = false
	f.errText = ""
	f.field = 0
	f.email.Reset()
	f.password.Reset()
	f.email.Focus()
	f.password.Blur()
}

func (f *loginForm) focusCmd() tea.Cmd {
	return textinput.Blink
}

func (f *loginForm) nextField() {
	if f.field == 0 {
		f.field = 1
		f.email.Blur()
		f.password.Focus()
	} else {
		f.field = 0
		f.password.Blur()
		f.email.Focus()
	}
}

// handleLoginKey drives the login overlay while it has focus.
func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.busy {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.login.visible = false
		m.focus = focusInput
		m.input.Focus()
		return m, textinput.Blink

	case "tab", "shift+tab", "up", "down":
		m.login.nextField()
		return m, textinput.Blink

	case "enter":
		if m.login.field == 0 {
			m.login.nextField()
			return m, textinput.Blink
		}
		email := strings.TrimSpace(m.login.email.Value())
		password := m.login.password.Value()
		if email == "" || password == "" {
			m.login.errText = "email and password are required"
			return m, nil
		}
		m.login.busy = true
		m.login.errText = ""
		env := m.env
		return m, func() tea.Msg {
			return LoginResultMsg{Err: env.Gate.Login(env.Ctx, email, password)}
		}
	}

	var cmd tea.Cmd
	if m.login.field == 0 {
		m.login.email, cmd = m.login.email.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	return m, cmd
}
