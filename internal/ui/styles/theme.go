// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the chat screen. It detects the
// terminal's color capability once at startup.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions, updated on resize.
	Width  int
	Height int

	// ==========================================================================
	// APPLICATION CONTAINER
	// ==========================================================================

	App    lipgloss.Style
	Header lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar            lipgloss.Style
	SidebarTitle       lipgloss.Style
	SidebarItem        lipgloss.Style
	SidebarItemActive  lipgloss.Style
	SidebarMeta        lipgloss.Style
	SidebarLocalBadge  lipgloss.Style
	SidebarEmptyNotice lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemNotice    lipgloss.Style
	MessageTime     lipgloss.Style
	Thinking        lipgloss.Style

	// ==========================================================================
	// INPUT AREA
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style
	RecordingBadge   lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	AuthOn       lipgloss.Style
	AuthOff      lipgloss.Style
	ServedRemote lipgloss.Style
	ServedLocal  lipgloss.Style
	OfflineBadge lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// TOASTS AND PROMPTS
	// ==========================================================================

	ErrorToast  lipgloss.Style
	InfoToast   lipgloss.Style
	LoginBox    lipgloss.Style
	LoginTitle  lipgloss.Style
	LoginField  lipgloss.Style
	LoginHint   lipgloss.Style
	HelpOverlay lipgloss.Style
}

// NewTheme creates a theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)

	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		PaddingBottom(1)

	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.SidebarItemActive = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	t.SidebarMeta = lipgloss.NewStyle().
		Foreground(TextMuted).
		PaddingLeft(1)

	t.SidebarLocalBadge = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.SidebarEmptyNotice = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Padding(1)

	// Transcript
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 2).
		MarginLeft(4)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 2).
		MarginRight(4)

	t.SystemNotice = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true).
		Align(lipgloss.Center)

	t.MessageTime = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Thinking = lipgloss.NewStyle().
		Foreground(Purple).
		Italic(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.RecordingBadge = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true).
		Blink(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.AuthOn = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.AuthOff = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ServedRemote = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ServedLocal = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.OfflineBadge = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Toasts and prompts
	t.ErrorToast = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)

	t.InfoToast = lipgloss.NewStyle().
		Foreground(Cyan).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.LoginBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)

	t.LoginTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.LoginField = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.LoginHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.HelpOverlay = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 2)
}

// Resize records the terminal dimensions for layout computations.
func (t *Theme) Resize(width, height int) {
	t.Width = width
	t.Height = height
}
