package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"prana-chat/internal/geo"
	"prana-chat/internal/ui"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4FD1C5"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24"))
	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth-2).
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("#374151")).
			PaddingRight(1)

	locationColors = map[geo.State]lipgloss.Color{
		geo.StatePending:  lipgloss.Color("#FBBF24"),
		geo.StateResolved: lipgloss.Color("#34D399"),
		geo.StateFailed:   lipgloss.Color("#F87171"),
	}
)

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.statusView(),
		m.input.View(),
	)
	if m.width < sidebarMinWidth {
		return main
	}
	sidebar := sidebarStyle.Height(m.height).Render(m.sidebarView())
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (m Model) headerView() string {
	loc := m.ctrl.Location()
	indicator := lipgloss.NewStyle().Foreground(locationColors[loc.State]).Render("● " + loc.Status())
	return titleStyle.Render("Prana-Rakshak") + "  " +
		mutedStyle.Render(m.ctrl.Store().ActiveID()) + "  " + indicator
}

func (m Model) statusView() string {
	var lines []string
	if m.ctrl.Store().Busy() {
		lines = append(lines, m.spinner.View()+" "+mutedStyle.Render(ui.BusyText))
	} else {
		lines = append(lines, "")
	}
	if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice))
	}
	return strings.Join(lines, "\n")
}

func (m Model) sidebarView() string {
	snap := m.ctrl.Store().Snapshot()
	return titleStyle.Render("Sessions") + "\n" +
		mutedStyle.Render("/new  /switch <n>") + "\n\n" +
		ui.FormatSessions(m.renderer, snap.Sessions, snap.ActiveID)
}

// conversationView renders every message of the active session.
func (m Model) conversationView() string {
	msgs := m.ctrl.Store().Messages()
	if len(msgs) == 0 {
		return "\n" + mutedStyle.Render(ui.WelcomeText)
	}

	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, ui.FormatMessage(m.renderer, msg))
	}
	return strings.Join(parts, "\n")
}
