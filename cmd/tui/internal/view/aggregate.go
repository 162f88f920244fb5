package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

type aggregateState int

const (
	aggregateStateTimeframe aggregateState = iota
	aggregateStateResult
)

// AggregateModel shows total sales per product for a chosen period.
type AggregateModel struct {
	CommonModel
	ledger *Ledger

	state  aggregateState
	picker TimeframePicker
	table  table.Model
	label  string
	sum    ledger.Summary
}

func NewAggregateModel(l *Ledger) AggregateModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Product", Width: 30},
			{Title: "Total Sales", Width: 14},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)

	return AggregateModel{
		ledger: l,
		picker: NewTimeframePicker(TimeframeAll),
		table:  t,
	}
}

func (m AggregateModel) Title() string { return "Sales by Product" }

func (m AggregateModel) ShortHelp() string {
	if m.state == aggregateStateResult {
		return "Esc: change period"
	}

	return "Esc: back | Enter: confirm"
}

func (m AggregateModel) Init() tea.Cmd {
	return m.picker.Init()
}

func (m AggregateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if tf, ok := msg.(TimeframeSelectedMsg); ok {
		m.show(tf)
		m.state = aggregateStateResult

		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		if m.state == aggregateStateTimeframe {
			return m, Back
		}

		m.state = aggregateStateTimeframe
		m.picker.Reset()

		return m, m.picker.Init()
	}

	var cmd tea.Cmd

	switch m.state {
	case aggregateStateTimeframe:
		m.picker, cmd = m.picker.Update(msg)
	case aggregateStateResult:
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

func (m *AggregateModel) show(tf TimeframeSelectedMsg) {
	var records ledger.Ledger

	_ = m.ledger.Do(func(s *session.Session) error {
		records = s.Ledger()
		return nil
	})

	if !tf.All {
		records = ledger.Between(records, tf.Start, tf.End)
	}

	totals := ledger.SortedProductTotals(records)

	rows := make([]table.Row, len(totals))
	for i, pt := range totals {
		rows[i] = table.Row{pt.Product, FormatMoney(pt.TotalSales)}
	}

	m.table.SetRows(rows)
	m.table.SetCursor(0)
	m.label = tf.Label
	m.sum = ledger.Summarize(records)
}

func (m AggregateModel) View() string {
	if m.state == aggregateStateTimeframe {
		return lipgloss.NewStyle().Padding(1).Render(m.picker.View())
	}

	header := fmt.Sprintf("Period: %s", activeStyle(m.label))

	if len(m.table.Rows()) == 0 {
		return lipgloss.NewStyle().Padding(1).Render(header + "\n\nNo sales in this period.")
	}

	footer := fmt.Sprintf("%s | %d units | sales %s | cost %s | profit %s",
		FormatCount(m.sum.Records, "sale"),
		m.sum.Quantity,
		FormatMoney(m.sum.TotalSales),
		FormatMoney(m.sum.TotalCost),
		FormatMoney(m.sum.Profit),
	)

	return lipgloss.NewStyle().Padding(1).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240")).
				Render(m.table.View()),
			lipgloss.NewStyle().Faint(true).Render(footer),
		),
	)
}
