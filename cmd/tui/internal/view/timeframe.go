package view

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// TimeframeSelectedMsg is emitted when the user has selected a valid date range.
// Start and End are zero values when All is true.
type TimeframeSelectedMsg struct {
	Label string
	Start time.Time
	End   time.Time
	All   bool
}

type timeframeFields struct {
	selected Timeframe
	start    string
	end      string
}

// TimeframePicker is a reusable form for selecting a date range.
type TimeframePicker struct {
	initial Timeframe
	fields  *timeframeFields
	form    *huh.Form
}

func NewTimeframePicker(initial Timeframe) TimeframePicker {
	m := TimeframePicker{initial: initial}
	m.Reset()

	return m
}

func (m TimeframePicker) Init() tea.Cmd {
	return m.form.Init()
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	sel := m.selection()

	return m, func() tea.Msg { return sel }
}

func (m TimeframePicker) View() string {
	return m.form.View()
}

// Reset returns the picker to its initial selection.
func (m *TimeframePicker) Reset() {
	m.fields = &timeframeFields{selected: m.initial}

	options := make([]huh.Option[Timeframe], len(timeframes))
	for i, tf := range timeframes {
		options[i] = huh.NewOption(tf.String(), tf)
	}

	fields := m.fields
	isCustom := func() bool { return fields.selected == TimeframeCustom }

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Timeframe]().
				Title("Select Timeframe").
				Options(options...).
				Value(&fields.selected),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Start Date").
				Placeholder("YYYY-MM-DD").
				CharLimit(10).
				Value(&fields.start).
				Validate(validateDate),
			huh.NewInput().
				Title("End Date").
				Placeholder("YYYY-MM-DD").
				CharLimit(10).
				Value(&fields.end).
				Validate(func(s string) error {
					if err := validateDate(s); err != nil {
						return err
					}

					start, _ := time.Parse(time.DateOnly, fields.start)
					end, _ := time.Parse(time.DateOnly, s)

					if end.Before(start) {
						return errors.New("end date is before start date")
					}

					return nil
				}),
		).WithHideFunc(func() bool { return !isCustom() }),
	).WithWidth(45).WithShowHelp(false)
}

func (m TimeframePicker) selection() TimeframeSelectedMsg {
	tf := m.fields.selected

	switch tf {
	case TimeframeAll:
		return TimeframeSelectedMsg{Label: tf.String(), All: true}
	case TimeframeCustom:
		start, _ := time.Parse(time.DateOnly, m.fields.start)
		end, _ := time.Parse(time.DateOnly, m.fields.end)
		start, end = NormalizeDateRange(start, end)

		return TimeframeSelectedMsg{
			Label: fmt.Sprintf("%s to %s", FormatDate(start), FormatDate(end)),
			Start: start,
			End:   end,
		}
	}

	start, end := NormalizeDateRange(TimeframeToDateRange(tf, time.Now()))

	return TimeframeSelectedMsg{Label: tf.String(), Start: start, End: end}
}

func validateDate(s string) error {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return errors.New("use YYYY-MM-DD")
	}

	return nil
}
