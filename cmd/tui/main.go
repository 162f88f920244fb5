package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/salesledger/internal/app"
	"github.com/MrJamesThe3rd/salesledger/internal/config"
	"github.com/MrJamesThe3rd/salesledger/internal/logger"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

type model struct {
	cfg    *config.Config
	ledger *view.Ledger
	log    *zap.Logger

	currentView View
	status      string

	authView      view.AuthModel
	addView       view.AddModel
	listView      view.ListModel
	aggregateView view.AggregateModel
	importView    view.ImportModel
	exportView    view.ExportModel
}

type View int

const (
	ViewAuth      View = 0
	ViewMenu      View = 1
	ViewAdd       View = 2
	ViewList      View = 3
	ViewAggregate View = 4
	ViewImport    View = 5
	ViewExport    View = 6
)

func initialModel(cfg *config.Config, l *view.Ledger, log *zap.Logger) model {
	return model{
		cfg:         cfg,
		ledger:      l,
		log:         log,
		currentView: ViewAuth,
		authView:    view.NewAuthModel(l),
	}
}

func (m model) Init() tea.Cmd {
	return m.authView.Init()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			return m.updateMenu(msg)
		}
	case view.LoggedInMsg:
		m.log.Info("user logged in", zap.String("username", msg.Username))
		m.currentView = ViewMenu
		m.status = fmt.Sprintf("Welcome, %s.", msg.Username)

		return m, nil
	case view.BackMsg:
		m.currentView = ViewMenu
		m.status = msg.Status

		return m, nil
	case menuResultMsg:
		m.status = msg.status
		if msg.loggedOut {
			m.currentView = ViewAuth
			m.authView = view.NewAuthModel(m.ledger)

			return m, m.authView.Init()
		}

		return m, nil
	}

	switch m.currentView {
	case ViewAuth:
		var newModel tea.Model
		newModel, cmd = m.authView.Update(msg)
		m.authView = newModel.(view.AuthModel)
	case ViewAdd:
		var newModel tea.Model
		newModel, cmd = m.addView.Update(msg)
		m.addView = newModel.(view.AddModel)
	case ViewList:
		var newModel tea.Model
		newModel, cmd = m.listView.Update(msg)
		m.listView = newModel.(view.ListModel)
	case ViewAggregate:
		var newModel tea.Model
		newModel, cmd = m.aggregateView.Update(msg)
		m.aggregateView = newModel.(view.AggregateModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewExport:
		var newModel tea.Model
		newModel, cmd = m.exportView.Update(msg)
		m.exportView = newModel.(view.ExportModel)
	}

	return m, cmd
}

func (m model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "1":
		m.currentView = ViewAdd
		m.addView = view.NewAddModel(m.ledger)

		return m, m.addView.Init()
	case "2":
		m.currentView = ViewList
		m.listView = view.NewListModel(m.ledger)

		return m, m.listView.Init()
	case "3":
		m.currentView = ViewAggregate
		m.aggregateView = view.NewAggregateModel(m.ledger)

		return m, m.aggregateView.Init()
	case "4":
		m.currentView = ViewImport
		m.importView = view.NewImportModel(m.ledger)

		return m, m.importView.Init()
	case "5":
		m.currentView = ViewExport
		m.exportView = view.NewExportModel(m.ledger)

		return m, m.exportView.Init()
	case "s":
		return m, m.saveCmd()
	case "r":
		return m, m.reloadCmd()
	case "l":
		return m, m.logoutCmd()
	}

	return m, nil
}

func (m model) active() view.View {
	switch m.currentView {
	case ViewAuth:
		return m.authView
	case ViewAdd:
		return m.addView
	case ViewList:
		return m.listView
	case ViewAggregate:
		return m.aggregateView
	case ViewImport:
		return m.importView
	case ViewExport:
		return m.exportView
	}

	return nil
}

func (m model) View() string {
	if m.currentView == ViewMenu {
		return m.viewMenu()
	}

	v := m.active()
	if v == nil {
		return "Unknown View"
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Render(m.cfg.App.Name + " | " + v.Title())
	help := lipgloss.NewStyle().Faint(true).Render(v.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left, title, v.View(), help)
}

func (m model) viewMenu() string {
	header := lipgloss.NewStyle().Bold(true).Render(m.cfg.App.Name) + "\n" +
		lipgloss.NewStyle().Faint(true).Render(m.ledger.Status())

	status := ""
	if m.status != "" {
		status = "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(m.status) + "\n"
	}

	return lipgloss.NewStyle().Padding(2).Render(
		header + "\n" + status + "\n" +
			"1. Add Sale\n" +
			"2. View / Edit Sales\n" +
			"3. Sales by Product\n" +
			"4. Import CSV\n" +
			"5. Export CSV\n\n" +
			"s. Save\n" +
			"r. Reload from storage\n" +
			"l. Log out\n" +
			"q. Quit",
	)
}

// Menu actions

type menuResultMsg struct {
	status    string
	loggedOut bool
}

func (m model) saveCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := view.StorageCtx()
		defer cancel()

		if err := m.ledger.Do(func(s *session.Session) error { return s.Save(ctx) }); err != nil {
			m.log.Error("save failed", zap.Error(err))
			return menuResultMsg{status: fmt.Sprintf("Save failed: %v", err)}
		}

		return menuResultMsg{status: "Saved."}
	}
}

func (m model) reloadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := view.StorageCtx()
		defer cancel()

		if err := m.ledger.Do(func(s *session.Session) error { return s.Reload(ctx) }); err != nil {
			return menuResultMsg{status: fmt.Sprintf("Reload failed: %v", err)}
		}

		return menuResultMsg{status: "Reloaded from storage."}
	}
}

func (m model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		var dirty bool

		_ = m.ledger.Do(func(s *session.Session) error {
			dirty = s.Dirty()
			s.Logout()

			return nil
		})

		status := "Logged out."
		if dirty {
			status = "Logged out. Unsaved changes were discarded."
		}

		return menuResultMsg{status: status, loggedOut: true}
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := tuiLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to initialise storage", zap.Error(err))
		return err
	}
	defer a.Close()

	l := view.NewLedger(a.NewSession(log))

	p := tea.NewProgram(initialModel(cfg, l, logger.Named(log, "tui")), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error("failed to run TUI", zap.Error(err))
		return err
	}

	var dirty bool

	_ = l.Do(func(s *session.Session) error {
		dirty = s.Dirty()
		return nil
	})

	if dirty {
		fmt.Fprintln(os.Stderr, "warning: quit with unsaved changes")
	}

	return nil
}

// tuiLogger keeps log lines off the terminal the UI is drawing on.
func tuiLogger(cfg *config.Config) (*zap.Logger, error) {
	out := cfg.Log.Output
	if out == "" || out == "stderr" || out == "stdout" {
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}

		out = filepath.Join(cfg.Storage.Dir, "tui.log")
	}

	return logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
}
