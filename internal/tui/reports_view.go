// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// reports_view.go lets the operator scan a board and browse its stored
// test history.

package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mesa-nmanteufel/testhub/internal/barcode"
	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/i18n"
	"github.com/mesa-nmanteufel/testhub/internal/model"
)

type reportsState int

const (
	reportsStateScan reportsState = iota
	reportsStateList
	reportsStateDetail
)

type reportsModel struct {
	state   reportsState
	input   textinput.Model
	board   model.Board
	reports []model.TestReport
	table   table.Model
	status  string
	err     error
	width   int
	height  int
}

func newReportsModel() *reportsModel {
	ti := textinput.New()
	ti.Placeholder = "name-rev-variant-serial"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	return &reportsModel{
		state: reportsStateScan,
		input: ti,
	}
}

func (m *reportsModel) Init() tea.Cmd {
	return textinput.Blink
}

// buildTable populates the history table from the loaded reports.
func (m *reportsModel) buildTable() {
	columns := []table.Column{
		{Title: i18n.T("reports.header.timestamp"), Width: 17},
		{Title: i18n.T("reports.header.station"), Width: 16},
		{Title: i18n.T("reports.header.status"), Width: 8},
		{Title: i18n.T("reports.header.failures"), Width: 30},
	}

	var rows []table.Row
	for _, r := range m.reports {
		var failed []string
		for _, f := range r.Failures() {
			failed = append(failed, f.Description)
		}
		statusCell := r.OverallStatus
		if r.OverallStatus == model.StatusPass {
			statusCell = successStyle.Render(r.OverallStatus)
		} else {
			statusCell = errorStyle.Render(r.OverallStatus)
		}
		rows = append(rows, table.Row{r.Timestamp, r.Station, statusCell, strings.Join(failed, ", ")})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorSubtle).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(colorWhite).
		Background(colorHighlight).
		Bold(false)
	t.SetStyles(s)

	if m.height > 0 {
		t.SetHeight(m.height - 8)
	}
	m.table = t
}

func (m *reportsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if sizeMsg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = sizeMsg.Width
		m.height = sizeMsg.Height
		if m.state == reportsStateList {
			m.table.SetHeight(sizeMsg.Height - 8)
			m.table.SetWidth(sizeMsg.Width - 4)
		}
		return m, nil
	}

	switch m.state {
	case reportsStateScan:
		return m.updateScan(msg)
	case reportsStateList:
		return m.updateList(msg)
	default:
		return m.updateDetail(msg)
	}
}

func (m *reportsModel) updateScan(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEsc:
			return m, func() tea.Msg { return backToMenuMsg{} }
		case tea.KeyEnter:
			code := strings.TrimSpace(m.input.Value())
			if code == "" {
				return m, nil
			}
			board := barcode.Parse(code)
			if !barcode.Valid(board) {
				m.status = errorStyle.Render(i18n.T("reports.bad_barcode", code))
				m.input.SetValue("")
				return m, nil
			}
			reports, err := db.GetReportsForBoard(board)
			if err != nil {
				m.err = err
				return m, nil
			}
			if len(reports) == 0 {
				m.status = helpStyle.Render(i18n.T("reports.none_found", board.String()))
				m.input.SetValue("")
				return m, nil
			}
			m.board = board
			m.reports = reports
			m.status = ""
			m.buildTable()
			m.state = reportsStateList
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *reportsModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "q", "esc":
			m.state = reportsStateScan
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		case "enter":
			if len(m.reports) > 0 {
				m.state = reportsStateDetail
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *reportsModel) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "q", "esc":
			m.state = reportsStateList
			m.status = ""
			return m, nil
		case "c":
			if r := m.selectedReport(); r != nil {
				if err := clipboard.WriteAll(renderReportText(*r)); err == nil {
					m.status = statusMessageStyle.Render(i18n.T("reports.copied"))
				} else {
					m.status = errorStyle.Render(i18n.T("reports.copy_failed", err))
				}
			}
			return m, nil
		}
	}
	return m, nil
}

// selectedReport maps the table cursor back to the loaded report slice.
func (m *reportsModel) selectedReport() *model.TestReport {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.reports) {
		return nil
	}
	return &m.reports[idx]
}

func (m *reportsModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error loading reports: %v", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("📋 "+i18n.T("reports.title")) + "\n\n")

	switch m.state {
	case reportsStateScan:
		b.WriteString(i18n.T("reports.scan_prompt") + "\n\n")
		b.WriteString(m.input.View() + "\n\n")
		if m.status != "" {
			b.WriteString(m.status + "\n\n")
		}
		b.WriteString(helpStyle.Render(i18n.T("reports.scan_help")))

	case reportsStateList:
		b.WriteString(helpStyle.Render(m.board.String()) + "\n\n")
		b.WriteString(m.table.View() + "\n")
		b.WriteString(helpStyle.Render(i18n.T("reports.list_help")))

	default: // reportsStateDetail
		r := m.selectedReport()
		if r == nil {
			b.WriteString(helpStyle.Render(i18n.T("reports.none_found", m.board.String())))
			return b.String()
		}
		b.WriteString(helpStyle.Render(fmt.Sprintf("%s  %s  %s", r.Barcode, r.Timestamp, r.Station)) + "\n\n")
		for _, res := range r.Results {
			line := fmt.Sprintf("Test# %d:  %-20s %8.3f V  (%.3f..%.3f)  ",
				res.TestNumber, res.Description, res.MeasuredValue, res.LowerLimit, res.UpperLimit)
			b.WriteString(line + conclusionStyle(res.Conclusion).Render(res.Conclusion) + "\n")
		}
		verdict := successStyle
		if r.OverallStatus != model.StatusPass {
			verdict = errorStyle
		}
		b.WriteString("\n" + verdict.Bold(true).Render(r.OverallStatus) + "\n")
		if m.status != "" {
			b.WriteString("\n" + m.status + "\n")
		}
		b.WriteString("\n" + helpStyle.Render(i18n.T("reports.detail_help")))
	}

	return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
}
