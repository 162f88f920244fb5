package view

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

type AddModel struct {
	CommonModel
	ledger *Ledger

	form    *huh.Form
	fields  *saleFields
	saving  bool
	spinner spinner.Model
	err     error
}

func NewAddModel(l *Ledger) AddModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	fields := &saleFields{quantity: "1"}

	return AddModel{
		ledger:  l,
		fields:  fields,
		form:    saleForm(fields),
		spinner: s,
	}
}

func (m AddModel) Title() string     { return "Add Sale" }
func (m AddModel) ShortHelp() string { return "Esc: back | Enter: next" }

func (m AddModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m AddModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case addResultMsg:
		m.saving = false

		if msg.err == nil {
			return m, BackWith(fmt.Sprintf("Sale added: %s (total %s)", msg.rec.Product, FormatMoney(msg.rec.TotalSales())))
		}

		if errors.Is(msg.err, ledger.ErrPersistence) {
			return m, BackWith(fmt.Sprintf("Sale added but NOT saved: %v. Use Save to retry.", msg.err))
		}

		m.err = msg.err
		m.form = saleForm(m.fields)

		return m, m.form.Init()

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc && !m.saving {
			return m, Back
		}
	}

	if m.saving {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	p, err := m.fields.params()
	if err != nil {
		m.err = err
		m.form = saleForm(m.fields)

		return m, m.form.Init()
	}

	m.saving = true
	m.err = nil

	return m, tea.Batch(m.spinner.Tick, m.addCmd(p))
}

func (m AddModel) View() string {
	if m.saving {
		return lipgloss.NewStyle().Padding(1).Render(m.spinner.View() + " Saving sale...")
	}

	content := m.form.View()
	if m.err != nil {
		content = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render("New Sale\n\n" + content)
}

type addResultMsg struct {
	rec ledger.Record
	err error
}

func (m AddModel) addCmd(p ledger.Params) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := StorageCtx()
		defer cancel()

		var rec ledger.Record

		err := m.ledger.Do(func(s *session.Session) error {
			var err error
			rec, err = s.Add(ctx, p)

			return err
		})

		return addResultMsg{rec: rec, err: err}
	}
}
