package view

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

type listState int

const (
	listStateBrowse listState = iota
	listStateEdit
	listStateDelete
)

// listFilters are cycled with "t"; indexes into timeframes.
var listFilters = []Timeframe{TimeframeAll, TimeframeThisMonth, TimeframeLastMonth}

type ListModel struct {
	CommonModel
	ledger *Ledger

	state   listState
	table   table.Model
	records ledger.Ledger
	dirty   bool
	form    *huh.Form
	fields  *saleFields
	confirm *bool
	target  ledger.Record

	filterIdx int
	status    string
	err       error
}

func NewListModel(l *Ledger) ListModel {
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Date", Width: 12},
		{Title: "Product", Width: 24},
		{Title: "Qty", Width: 6},
		{Title: "Price", Width: 10},
		{Title: "Cost/Unit", Width: 10},
		{Title: "Total Cost", Width: 12},
		{Title: "Total Sales", Width: 12},
		{Title: "Profit", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ListModel{ledger: l, table: t}
}

func (m ListModel) Title() string { return "Sales" }
func (m ListModel) ShortHelp() string {
	switch m.state {
	case listStateEdit:
		return "Navigate form | Esc: cancel"
	case listStateDelete:
		return "Confirm deletion | Esc: cancel"
	}

	return "Esc: back | e: edit | x: delete | t: date filter | r: refresh"
}

func (m ListModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadListMsg:
		m.records = msg.records
		m.dirty = msg.dirty
		m.refreshTable()

		return m, nil

	case listMutateMsg:
		m.err = msg.err
		m.status = msg.status

		if errors.Is(msg.err, ledger.ErrPersistence) {
			m.err = nil
			m.status = fmt.Sprintf("%s, but NOT saved: %v", msg.status, msg.err)
		}

		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case listStateBrowse:
		return m.updateBrowse(msg)
	case listStateEdit, listStateDelete:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m ListModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			return m, m.loadCmd()
		case "e":
			return m.enterEdit()
		case "x":
			return m.enterDelete()
		case "t":
			m.filterIdx = (m.filterIdx + 1) % len(listFilters)
			m.refreshTable()

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ListModel) selected() (ledger.Record, bool) {
	visible := m.visible()
	idx := m.table.Cursor()

	if idx < 0 || idx >= len(visible) {
		return ledger.Record{}, false
	}

	return visible[idx].rec, true
}

func (m ListModel) enterEdit() (tea.Model, tea.Cmd) {
	rec, ok := m.selected()
	if !ok {
		return m, nil
	}

	m.target = rec
	m.fields = fieldsFrom(rec)
	m.form = saleForm(m.fields)
	m.state = listStateEdit
	m.table.Blur()

	return m, m.form.Init()
}

func (m ListModel) enterDelete() (tea.Model, tea.Cmd) {
	rec, ok := m.selected()
	if !ok {
		return m, nil
	}

	m.target = rec
	m.confirm = new(bool)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s sold on %s?", rec.Product, FormatDate(rec.Date))).
				Affirmative("Delete").
				Negative("Cancel").
				Value(m.confirm),
		),
	).WithWidth(45).WithShowHelp(false)
	m.state = listStateDelete
	m.table.Blur()

	return m, m.form.Init()
}

func (m ListModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.state == listStateDelete {
		if !*m.confirm {
			m.state = listStateBrowse
			m.form = nil
			m.table.Focus()

			return m, nil
		}

		return m, m.deleteCmd(m.target.ID, m.target.Product)
	}

	p, err := m.fields.params()
	if err != nil {
		m.status = ""
		m.err = err
		m.form = saleForm(m.fields)

		return m, m.form.Init()
	}

	return m, m.updateCmd(m.target.ID, p)
}

func (m ListModel) View() string {
	header := fmt.Sprintf("%s | [t] Date: %s",
		FormatCount(len(m.records), "sale"),
		activeStyle(listFilters[m.filterIdx].String()),
	)

	if m.dirty {
		header += " | " + lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("unsaved changes")
	}

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if (m.state == listStateEdit || m.state == listStateDelete) && m.form != nil {
		title := "Edit Sale"
		if m.state == listStateDelete {
			title = "Delete Sale"
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(fmt.Sprintf("%s\n\nDate: %s\n\n%s", title, FormatDate(m.target.Date), m.form.View()))

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.err != nil {
		content = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Error: %v", m.err)) + "\n" + content
	} else if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

type positioned struct {
	index int
	rec   ledger.Record
}

// visible is the filtered view of records, keeping each record's ledger position.
func (m ListModel) visible() []positioned {
	tf := listFilters[m.filterIdx]

	var start, end time.Time
	if tf != TimeframeAll {
		start, end = NormalizeDateRange(TimeframeToDateRange(tf, time.Now()))
	}

	out := make([]positioned, 0, len(m.records))
	for i, r := range m.records {
		if tf != TimeframeAll && (r.Date.Before(start) || r.Date.After(end)) {
			continue
		}

		out = append(out, positioned{index: i, rec: r})
	}

	return out
}

func (m *ListModel) refreshTable() {
	visible := m.visible()

	rows := make([]table.Row, 0, len(visible))
	for _, p := range visible {
		r := p.rec
		rows = append(rows, table.Row{
			fmt.Sprint(p.index + 1),
			FormatDate(r.Date),
			r.Product,
			fmt.Sprint(r.Quantity),
			FormatMoney(r.Price),
			FormatMoney(r.CostPerUnit),
			FormatMoney(r.TotalCost()),
			FormatMoney(r.TotalSales()),
			FormatMoney(r.Profit()),
		})
	}

	m.table.SetRows(rows)

	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// Messages

type loadListMsg struct {
	records ledger.Ledger
	dirty   bool
}

func (m ListModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		var msg loadListMsg

		_ = m.ledger.Do(func(s *session.Session) error {
			msg = loadListMsg{records: s.Ledger(), dirty: s.Dirty()}
			return nil
		})

		return msg
	}
}

type listMutateMsg struct {
	status string
	err    error
}

func (m ListModel) updateCmd(id uuid.UUID, p ledger.Params) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := StorageCtx()
		defer cancel()

		err := m.ledger.Do(func(s *session.Session) error {
			return s.UpdateByID(ctx, id, p)
		})

		return listMutateMsg{status: fmt.Sprintf("Updated %s", p.Product), err: err}
	}
}

func (m ListModel) deleteCmd(id uuid.UUID, product string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := StorageCtx()
		defer cancel()

		err := m.ledger.Do(func(s *session.Session) error {
			return s.DeleteByID(ctx, id)
		})

		return listMutateMsg{status: fmt.Sprintf("Deleted %s", product), err: err}
	}
}
