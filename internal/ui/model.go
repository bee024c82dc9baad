// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the full-screen Bubble Tea chat client: a conversation
// sidebar, the transcript viewport, the input line, and a status bar.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/mgchat/internal/commands"
	"github.com/jeranaias/mgchat/internal/lang"
	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/pipeline"
	"github.com/jeranaias/mgchat/internal/render"
	"github.com/jeranaias/mgchat/internal/router"
	"github.com/jeranaias/mgchat/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// focusArea tracks which pane receives key input.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
	focusLogin
)

// toast is a transient notice shown above the status bar.
type toast struct {
	text  string
	isErr bool
	seq   int
}

// Options wires the chat screen to the application services.
type Options struct {
	Env      *commands.Env
	Registry *commands.Registry
	Renderer *render.Renderer
	// StoreChanges delivers external conversation-directory changes, may be
	// nil.
	StoreChanges <-chan struct{}
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	theme    *styles.Theme
	env      *commands.Env
	registry *commands.Registry
	renderer *render.Renderer

	// Dimensions
	width  int
	height int

	// Panes
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	focus    focusArea

	// Sidebar
	sidebarVisible  bool
	sidebarItems    []model.ConversationMeta
	sidebarSelected int

	// Streaming display
	thinking   bool
	deltasSeen bool
	served     router.Served

	// Paced reveal for single-shot replies
	revealMsgID  string
	revealTokens []string
	revealShown  string
	revealReqID  string

	// Login overlay
	login loginForm

	// Transient notice
	toast    *toast
	toastSeq int

	// External change feed
	storeChanges <-chan struct{}

	quitting bool
}

// New creates the chat screen model.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message, /help for commands"
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	return Model{
		theme:          styles.NewTheme(),
		env:            opts.Env,
		registry:       opts.Registry,
		renderer:       opts.Renderer,
		viewport:       vp,
		input:          ti,
		spinner:        sp,
		focus:          focusInput,
		sidebarVisible: opts.Env.Config.UI.SidebarVisible,
		login:          newLoginForm(),
		storeChanges:   opts.StoreChanges,
	}
}

// Init starts the event pump and loads the sidebar.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		waitForEvent(m.env.Pipeline.Events()),
		m.loadSidebar(),
	}
	if cmd := waitForStoreChange(m.storeChanges); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case PipelineEventMsg:
		return m.handlePipelineEvent(msg.Event)

	case SidebarLoadedMsg:
		return m.handleSidebarLoaded(msg)

	case ConversationOpenedMsg:
		return m.handleConversationOpened(msg)

	case LoginResultMsg:
		return m.handleLoginResult(msg)

	case SyncDoneMsg:
		return m.handleSyncDone(msg)

	case StoreChangedMsg:
		return m, tea.Batch(m.loadSidebar(), waitForStoreChange(m.storeChanges))

	case RevealTickMsg:
		return m.handleRevealTick(msg)

	case ToastExpireMsg:
		if m.toast != nil && m.toast.seq == msg.Seq {
			m.toast = nil
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		if m.thinking {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmds []tea.Cmd
	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// PIPELINE EVENTS
// =============================================================================

func (m Model) handlePipelineEvent(ev pipeline.Event) (tea.Model, tea.Cmd) {
	rearm := waitForEvent(m.env.Pipeline.Events())

	switch ev.Kind {
	case pipeline.EventState:
		if ev.State == pipeline.StateSubmitting {
			m.thinking = true
			m.deltasSeen = false
			return m, tea.Batch(rearm, m.spinner.Tick)
		}
		return m, rearm

	case pipeline.EventUserMessage:
		m.updateTranscript()
		m.viewport.GotoBottom()
		return m, rearm

	case pipeline.EventAssistantStarted:
		m.updateTranscript()
		return m, rearm

	case pipeline.EventDelta:
		m.thinking = false
		m.deltasSeen = true
		m.updateTranscript()
		m.viewport.GotoBottom()
		return m, rearm

	case pipeline.EventMeta:
		// Server adopted the conversation, ids in the sidebar changed.
		return m, tea.Batch(rearm, m.loadSidebar())

	case pipeline.EventDone:
		m.thinking = false
		m.served = ev.Served
		if !m.deltasSeen && ev.Message != nil && ev.Message.Content != "" {
			// Single-shot reply: reveal it token by token.
			if cmd := m.beginReveal(ev); cmd != nil {
				return m, tea.Batch(rearm, m.loadSidebar(), cmd)
			}
		}
		m.updateTranscript()
		m.viewport.GotoBottom()
		m.speak(ev.Message)
		return m, tea.Batch(rearm, m.loadSidebar())

	case pipeline.EventError:
		m.thinking = false
		m.updateTranscript()
		toastCmd := m.showError(ev.Err)
		return m, tea.Batch(rearm, toastCmd)
	}
	return m, rearm
}

// beginReveal prepares the paced reveal of a reply that arrived in one
// piece. Returns nil when the pipeline would not enter the Awaiting state.
func (m *Model) beginReveal(ev pipeline.Event) tea.Cmd {
	if !m.env.Pipeline.BeginReveal() {
		return nil
	}
	m.revealMsgID = ev.Message.ID
	m.revealTokens = render.SplitTokens(ev.Message.Content)
	m.revealShown = ""
	m.revealReqID = ev.RequestID
	m.updateTranscript()
	return revealTick(ev.RequestID)
}

func (m Model) handleRevealTick(msg RevealTickMsg) (tea.Model, tea.Cmd) {
	if msg.RequestID != m.revealReqID || len(m.revealTokens) == 0 {
		return m, nil
	}
	m.revealShown += m.revealTokens[0]
	m.revealTokens = m.revealTokens[1:]
	m.updateTranscript()
	m.viewport.GotoBottom()

	if len(m.revealTokens) == 0 {
		m.env.Pipeline.EndReveal()
		m.revealMsgID = ""
		m.revealReqID = ""
		if conv := m.env.Pipeline.Conversation(); conv != nil {
			m.speak(conv.LastMessage())
		}
		return m, nil
	}
	return m, revealTick(msg.RequestID)
}

// revealTick paces the reveal at roughly twenty tokens per second.
func revealTick(requestID string) tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return RevealTickMsg{RequestID: requestID}
	})
}

func (m *Model) speak(msg *model.Message) {
	if msg == nil || !m.env.Speaker.Enabled() {
		return
	}
	m.env.Speaker.Speak(msg.Content, lang.Detect(msg.Content))
}

// =============================================================================
// ASYNC COMMANDS
// =============================================================================

// loadSidebar refreshes the conversation list off the update loop.
func (m Model) loadSidebar() tea.Cmd {
	env := m.env
	return func() tea.Msg {
		items, err := env.Repo.List(env.Ctx)
		return SidebarLoadedMsg{Items: items, Err: err}
	}
}

// openConversation loads a conversation for display.
func (m Model) openConversation(id string) tea.Cmd {
	env := m.env
	return func() tea.Msg {
		conv, err := env.Repo.Open(env.Ctx, id)
		return ConversationOpenedMsg{Conversation: conv, Err: err}
	}
}

// syncOnLogin pushes local-only conversations after authentication.
func (m Model) syncOnLogin() tea.Cmd {
	env := m.env
	return func() tea.Msg {
		count, err := env.Repo.SyncOnLogin(env.Ctx)
		return SyncDoneMsg{Count: count, Err: err}
	}
}

func (m Model) handleSidebarLoaded(msg SidebarLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.showError(msg.Err)
	}
	m.sidebarItems = msg.Items
	if m.sidebarSelected >= len(m.sidebarItems) {
		m.sidebarSelected = len(m.sidebarItems) - 1
	}
	if m.sidebarSelected < 0 {
		m.sidebarSelected = 0
	}
	return m, nil
}

func (m Model) handleConversationOpened(msg ConversationOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.showError(msg.Err)
	}
	m.env.Pipeline.SetConversation(msg.Conversation)
	m.focus = focusInput
	m.input.Focus()
	m.updateTranscript()
	m.viewport.GotoBottom()
	return m, textinput.Blink
}

func (m Model) handleLoginResult(msg LoginResultMsg) (tea.Model, tea.Cmd) {
	m.login.busy = false
	if msg.Err != nil {
		m.login.errText = msg.Err.Error()
		return m, nil
	}
	m.login.visible = false
	m.focus = focusInput
	m.input.Focus()
	return m, tea.Batch(
		m.showInfo("Logged in."),
		m.syncOnLogin(),
		m.loadSidebar(),
		textinput.Blink,
	)
}

func (m Model) handleSyncDone(msg SyncDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.showError(msg.Err)
	}
	if msg.Count == 0 {
		return m, m.loadSidebar()
	}
	return m, tea.Batch(m.showInfo(pluralSynced(msg.Count)), m.loadSidebar())
}

// =============================================================================
// TOASTS
// =============================================================================

func (m *Model) showError(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	return m.pushToast(err.Error(), true)
}

func (m *Model) showInfo(text string) tea.Cmd {
	return m.pushToast(text, false)
}

func (m *Model) pushToast(text string, isErr bool) tea.Cmd {
	m.toastSeq++
	m.toast = &toast{text: text, isErr: isErr, seq: m.toastSeq}
	seq := m.toastSeq
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return ToastExpireMsg{Seq: seq}
	})
}
