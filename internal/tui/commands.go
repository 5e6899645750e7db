package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"prana-chat/internal/config"
	"prana-chat/internal/conversation"
	"prana-chat/internal/export"
	"prana-chat/internal/geo"
)

type sessionsMsg struct{ result conversation.SessionsResult }

type historyMsg struct{ result conversation.HistoryResult }

type replyMsg struct{ result conversation.Result }

type locationMsg struct{ location geo.Location }

type exportedMsg struct {
	path string
	err  error
}

func (m Model) fetchSessions() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return sessionsMsg{result: ctrl.FetchSessions(ctx)}
	}
}

func (m Model) loadHistory(t conversation.Ticket) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return historyMsg{result: ctrl.LoadHistory(ctx, t)}
	}
}

func (m Model) execute(req conversation.Request) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return replyMsg{result: ctrl.Execute(ctx, req)}
	}
}

func (m Model) locate() tea.Cmd {
	if m.locator == nil {
		return nil
	}
	locator, ctx := m.locator, m.ctx
	return func() tea.Msg {
		return locationMsg{location: locator.Locate(ctx)}
	}
}

// export snapshots the active session now and writes it in the background.
func (m Model) export(path string) tea.Cmd {
	path = config.ExpandHome(path)
	snap := m.ctrl.Store().Snapshot()
	session := snap.ActiveSession()
	return func() tea.Msg {
		err := export.WriteFile(path, session, snap.Messages)
		return exportedMsg{path: path, err: err}
	}
}
