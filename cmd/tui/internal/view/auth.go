package view

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/salesledger/internal/session"
	"github.com/MrJamesThe3rd/salesledger/internal/user"
)

const (
	actionLogin    = "login"
	actionRegister = "register"
)

// LoggedInMsg is emitted once the session holds an authenticated user.
type LoggedInMsg struct {
	Username string
}

type credentials struct {
	action   string
	username string
	password string
}

type AuthModel struct {
	CommonModel
	ledger *Ledger

	form   *huh.Form
	creds  *credentials
	busy   bool
	status string
	err    error
}

func NewAuthModel(l *Ledger) AuthModel {
	m := AuthModel{ledger: l}
	m.reset(actionLogin)

	return m
}

func (m AuthModel) Title() string     { return "Sign in" }
func (m AuthModel) ShortHelp() string { return "Enter: submit | Ctrl+C: quit" }

func (m AuthModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m AuthModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if res, ok := msg.(authResultMsg); ok {
		m.busy = false

		switch {
		case res.err != nil:
			m.err = res.err
			m.status = ""
			m.reset(res.action)
		case res.action == actionRegister:
			m.err = nil
			m.status = fmt.Sprintf("Account %q created. Log in to continue.", res.username)
			m.reset(actionLogin)
			m.creds.username = res.username
		default:
			return m, func() tea.Msg { return LoggedInMsg{Username: res.username} }
		}

		return m, m.form.Init()
	}

	if m.busy {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.busy = true

	return m, m.submitCmd(*m.creds)
}

func (m AuthModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Render("Sales Ledger")

	var lines []string
	lines = append(lines, title, "")

	if m.status != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render(m.status), "")
	}

	if m.err != nil {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(describeAuthError(m.err)), "")
	}

	if m.busy {
		lines = append(lines, "Working...")
	} else {
		lines = append(lines, m.form.View())
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func (m *AuthModel) reset(action string) {
	m.creds = &credentials{action: action}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Action").
				Options(
					huh.NewOption("Log in", actionLogin),
					huh.NewOption("Register", actionRegister),
				).
				Value(&m.creds.action),

			huh.NewInput().
				Title("Username").
				Value(&m.creds.username).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("username cannot be empty")
					}
					return nil
				}),

			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.creds.password),
		),
	).WithWidth(45).WithShowHelp(false)
}

func describeAuthError(err error) string {
	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, user.ErrUsernameTaken):
		return "That username is already taken."
	case errors.Is(err, user.ErrInvalidUsername):
		return "Username cannot be empty."
	}

	return fmt.Sprintf("Error: %v", err)
}

type authResultMsg struct {
	action   string
	username string
	err      error
}

func (m AuthModel) submitCmd(c credentials) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := StorageCtx()
		defer cancel()

		err := m.ledger.Do(func(s *session.Session) error {
			if c.action == actionRegister {
				return s.Register(ctx, c.username, c.password)
			}

			return s.Login(ctx, c.username, c.password)
		})

		return authResultMsg{action: c.action, username: c.username, err: err}
	}
}
