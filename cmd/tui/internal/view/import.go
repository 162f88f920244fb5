package view

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

const importTimeout = 30 * time.Second

type importState int

const (
	importStateFilePick importState = iota
	importStateImporting
	importStateResult
)

// ImportModel appends the sales of a CSV file to the ledger.
type ImportModel struct {
	CommonModel
	ledger *Ledger

	state      importState
	filePicker filepicker.Model
	spinner    spinner.Model
	path       string

	status string
	err    error
}

func NewImportModel(l *Ledger) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ImportModel{ledger: l, filePicker: fp, spinner: s}
}

func (m ImportModel) Title() string { return "Import Sales" }

func (m ImportModel) ShortHelp() string {
	if m.state == importStateResult {
		return "Esc: back to menu | Enter: import another"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyEsc && m.state != importStateImporting:
			return m, Back
		case msg.Type == tea.KeyEnter && m.state == importStateResult:
			m.state = importStateFilePick
			m.status = ""
			m.err = nil

			return m, m.filePicker.Init()
		}

	case importResultMsg:
		m.state = importStateResult
		m.err = msg.err

		switch {
		case msg.err != nil && msg.count > 0:
			m.status = fmt.Sprintf("Imported %s from %s, but NOT saved.", FormatCount(msg.count, "sale"), m.path)
		case msg.err != nil:
			m.status = fmt.Sprintf("Import of %s failed.", m.path)
		case msg.count == 0:
			m.status = fmt.Sprintf("%s contains no sales.", m.path)
		default:
			m.status = fmt.Sprintf("Imported %s from %s.", FormatCount(msg.count, "sale"), m.path)
		}

		return m, nil
	}

	switch m.state {
	case importStateImporting:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case importStateResult:
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateImporting
		m.path = path

		return m, tea.Batch(m.spinner.Tick, m.importCmd(path))
	}

	if didSelect, path := m.filePicker.DidSelectDisabledFile(msg); didSelect {
		m.err = fmt.Errorf("%s is not a .csv file", path)
		return m, cmd
	}

	return m, cmd
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateFilePick:
		content := "Select a sales CSV to import:\n\n" + m.filePicker.View()
		if m.err != nil {
			content = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(m.err.Error()) + "\n\n" + content
		}

		return lipgloss.NewStyle().Padding(1).Render(content)

	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("%s Importing from %s...", m.spinner.View(), m.path))

	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(2)
	if m.err != nil {
		return style.Render(
			lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(m.status) +
				fmt.Sprintf("\n\nError: %v\n\n(Esc to go back)", m.err),
		)
	}

	return style.Render(
		lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render(m.status) +
			"\n\n(Esc to go back)",
	)
}

type importResultMsg struct {
	count int
	err   error
}

func (m ImportModel) importCmd(path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		var n int

		err = m.ledger.Do(func(s *session.Session) error {
			var err error
			n, err = s.Import(ctx, f)

			return err
		})

		return importResultMsg{count: n, err: err}
	}
}
