// Package tui is the full-screen chat interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"prana-chat/internal/conversation"
	"prana-chat/internal/geo"
	"prana-chat/internal/logger"
	"prana-chat/internal/terminal"
	"prana-chat/internal/ui"
)

const (
	sidebarWidth    = 30
	sidebarMinWidth = 90
)

// Model is the bubbletea model. All conversation state lives in the
// controller's store; Update is the only place it is mutated for this UI.
type Model struct {
	ctx      context.Context
	ctrl     *conversation.Controller
	locator  geo.Locator
	renderer *ui.Renderer
	baseURL  string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	renderedVersion uint64
	renderedWidth   int

	notice   string
	initial  conversation.Ticket
	quitting bool
}

// New creates the model. The initial session's history load is started by
// Init.
func New(ctx context.Context, ctrl *conversation.Controller, locator geo.Locator, renderer *ui.Renderer, baseURL string) Model {
	in := textinput.New()
	in.Placeholder = "Ask about air quality, traffic or routes..."
	in.Prompt = "❯ "
	in.Focus()
	in.CharLimit = 0
	in.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4FD1C5"))

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		locator:  locator,
		renderer: renderer,
		baseURL:  baseURL,
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  s,
		initial:  ctrl.BeginSelect(ctrl.Store().ActiveID()),
	}
}

// Init starts the roster fetch, the initial history load and the location
// lookup.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.fetchSessions(),
		m.loadHistory(m.initial),
		m.locate(),
	)
}

// Update handles one event.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			cmd := m.handleInput(m.input.Value())
			if m.quitting {
				return m, cmd
			}
			cmds = append(cmds, cmd)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyCtrlU, tea.KeyCtrlD:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case sessionsMsg:
		m.ctrl.ApplySessions(msg.result)

	case historyMsg:
		if m.ctrl.ApplyHistory(msg.result) && msg.result.Err != nil {
			m.notice = "Could not load history for this session."
		}

	case replyMsg:
		if m.ctrl.Complete(msg.result) && msg.result.Err == nil {
			cmds = append(cmds, m.fetchSessions())
		}

	case locationMsg:
		m.ctrl.SetLocation(msg.location)

	case exportedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Export failed: %v", msg.err)
		} else {
			m.notice = "Saved transcript to " + msg.path
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.refresh()
	return m, tea.Batch(cmds...)
}

// handleInput runs a slash command or submits a chat message.
func (m *Model) handleInput(line string) tea.Cmd {
	cmd := terminal.ParseCommand(line)
	store := m.ctrl.Store()

	switch cmd.Kind {
	case terminal.CmdNone:
		req, err := m.ctrl.Submit(cmd.Arg)
		switch {
		case errors.Is(err, conversation.ErrEmptyMessage):
			return nil
		case errors.Is(err, conversation.ErrBusy):
			m.notice = "Still waiting for the previous reply."
			return nil
		}
		m.input.Reset()
		m.notice = ""
		return m.execute(req)

	case terminal.CmdNew:
		m.input.Reset()
		m.notice = ""
		m.ctrl.NewSession()
		return m.fetchSessions()

	case terminal.CmdSessions:
		m.input.Reset()
		m.notice = "Refreshing sessions..."
		return m.fetchSessions()

	case terminal.CmdSwitch:
		id, err := terminal.ResolveSession(cmd.Arg, store.Sessions())
		if err != nil {
			m.notice = err.Error()
			return nil
		}
		m.input.Reset()
		m.notice = ""
		return m.loadHistory(m.ctrl.BeginSelect(id))

	case terminal.CmdExport:
		if cmd.Arg == "" {
			m.notice = "usage: /export <file>"
			return nil
		}
		m.input.Reset()
		return m.export(cmd.Arg)

	case terminal.CmdLocation:
		m.input.Reset()
		loc := m.ctrl.Location()
		m.notice = fmt.Sprintf("%s (%s)", loc.Status(), loc)
		return nil

	case terminal.CmdHelp:
		m.input.Reset()
		m.notice = terminal.HelpText
		return nil

	case terminal.CmdExit:
		m.quitting = true
		return tea.Quit

	default:
		m.notice = fmt.Sprintf("Unknown command %s. Type /help.", cmd.Name)
		return nil
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	mainWidth := m.mainWidth()
	if r, err := m.renderer.Resize(mainWidth - 2); err == nil {
		m.renderer = r
	} else {
		logger.Warn("failed to resize renderer", "error", err)
	}

	m.input.Width = max(mainWidth-4, 10)
	m.viewport.Width = mainWidth
	m.viewport.Height = max(height-m.chromeHeight(), 3)
	m.ready = true
}

func (m Model) mainWidth() int {
	if m.width >= sidebarMinWidth {
		return m.width - sidebarWidth
	}
	return max(m.width, 20)
}

// chromeHeight is the number of lines outside the viewport.
func (m Model) chromeHeight() int {
	return 4 + strings.Count(m.notice, "\n")
}

// refresh re-renders the conversation when the store or width changed.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.Height = max(m.height-m.chromeHeight(), 3)

	version := m.ctrl.Store().Version()
	if version == m.renderedVersion && m.renderer.Width() == m.renderedWidth {
		return
	}
	m.renderedVersion = version
	m.renderedWidth = m.renderer.Width()

	m.viewport.SetContent(m.conversationView())
	m.viewport.GotoBottom()
}
