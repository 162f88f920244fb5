package view

import (
	tea "github.com/charmbracelet/bubbletea"
)

// View is the interface that all TUI screens implement.
type View interface {
	tea.Model
	Title() string
	ShortHelp() string
}

// CommonModel is embedded by all views.
type CommonModel struct{}

// BackMsg returns to the menu. Status, when set, is shown there.
type BackMsg struct {
	Status string
}

func Back() tea.Msg {
	return BackMsg{}
}

func BackWith(status string) tea.Cmd {
	return func() tea.Msg {
		return BackMsg{Status: status}
	}
}
