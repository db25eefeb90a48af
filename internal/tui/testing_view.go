// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// testing_view.go is the bench operator's main screen: scan a barcode,
// watch the step results stream in, store the report.

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mesa-nmanteufel/testhub/internal/barcode"
	"github.com/mesa-nmanteufel/testhub/internal/config"
	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/i18n"
	"github.com/mesa-nmanteufel/testhub/internal/instrument"
	"github.com/mesa-nmanteufel/testhub/internal/model"
	"github.com/mesa-nmanteufel/testhub/internal/runner"
	"github.com/mesa-nmanteufel/testhub/internal/testplan"
)

type testingState int

const (
	testingStateScan testingState = iota
	testingStateRunning
	testingStateDone
)

// stepResultMsg carries one finished measurement from the runner goroutine.
type stepResultMsg struct {
	result model.TestResult
}

// testFinishedMsg signals the end of a plan run.
type testFinishedMsg struct {
	report *model.TestReport
	err    error
}

type testingModel struct {
	cfg     config.Config
	state   testingState
	input   textinput.Model
	board   model.Board
	plan    model.TestPlan
	results []model.TestResult
	report  *model.TestReport
	events  chan tea.Msg
	status  string
	err     error
	width   int
	height  int
}

func newTestingModel(cfg config.Config) *testingModel {
	ti := textinput.New()
	ti.Placeholder = "name-rev-variant-serial"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	return &testingModel{
		cfg:   cfg,
		state: testingStateScan,
		input: ti,
	}
}

func (m *testingModel) Init() tea.Cmd {
	return textinput.Blink
}

// waitForTestEvent blocks on the runner's event channel and hands the next
// step result (or the final report) back to the update loop.
func waitForTestEvent(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// startTestCmd kicks off a plan run in a goroutine. Step results and the
// final report are delivered through the model's event channel.
func (m *testingModel) startTestCmd() tea.Cmd {
	events := m.events
	cfg := m.cfg
	plan := m.plan
	board := m.board

	go func() {
		inst, err := instrument.New(cfg.Instrument.Backend)
		if err != nil {
			events <- testFinishedMsg{err: err}
			return
		}
		defer inst.Close()

		r := runner.New(inst, cfg.Station)
		r.OnProgress(func(step model.TestStep, res model.TestResult) {
			events <- stepResultMsg{result: res}
		})

		report, err := r.Run(context.Background(), plan, board)
		events <- testFinishedMsg{report: report, err: err}
	}()

	return waitForTestEvent(events)
}

func (m *testingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stepResultMsg:
		m.results = append(m.results, msg.result)
		return m, waitForTestEvent(m.events)

	case testFinishedMsg:
		m.state = testingStateDone
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.report = msg.report
		if err := db.SaveReport(m.report); err != nil {
			m.err = fmt.Errorf("report not saved: %w", err)
		}
		return m, nil
	}

	switch m.state {
	case testingStateScan:
		return m.updateScan(msg)
	case testingStateRunning:
		// No input while the fixture is live.
		return m, nil
	default:
		return m.updateDone(msg)
	}
}

func (m *testingModel) updateScan(msg tea.Msg) (tea.Model, tea.Cmd) {
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
				m.status = errorStyle.Render(i18n.T("testing.bad_barcode", code))
				m.input.SetValue("")
				return m, nil
			}
			plan, err := testplan.ForBoard(board.Name, board.Revision)
			if err != nil {
				m.status = errorStyle.Render(err.Error())
				m.input.SetValue("")
				return m, nil
			}
			if m.cfg.Instrument.SupplyVolts > 0 {
				plan.SupplyVolts = m.cfg.Instrument.SupplyVolts
			}

			m.board = board
			m.plan = plan
			m.results = nil
			m.report = nil
			m.err = nil
			m.status = ""
			m.state = testingStateRunning
			m.events = make(chan tea.Msg, len(plan.Steps)+1)
			return m, m.startTestCmd()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *testingModel) updateDone(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "q", "esc":
			return m, func() tea.Msg { return backToMenuMsg{} }
		case "n", "enter":
			// Next board.
			m.state = testingStateScan
			m.input.SetValue("")
			m.input.Focus()
			m.status = ""
			return m, textinput.Blink
		case "c":
			if m.report != nil {
				if err := clipboard.WriteAll(renderReportText(*m.report)); err == nil {
					m.status = statusMessageStyle.Render(i18n.T("testing.copied"))
				} else {
					m.status = errorStyle.Render(i18n.T("testing.copy_failed", err))
				}
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *testingModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("⚡ "+i18n.T("testing.title")) + "\n\n")

	switch m.state {
	case testingStateScan:
		b.WriteString(i18n.T("testing.scan_prompt") + "\n\n")
		b.WriteString(m.input.View() + "\n\n")
		if m.status != "" {
			b.WriteString(m.status + "\n\n")
		}
		b.WriteString(helpStyle.Render(i18n.T("testing.scan_help")))

	case testingStateRunning:
		b.WriteString(m.headerLines())
		b.WriteString(m.resultLines())
		b.WriteString("\n" + helpStyle.Render(i18n.T("testing.running", len(m.results), len(m.plan.Steps))))

	default: // testingStateDone
		b.WriteString(m.headerLines())
		b.WriteString(m.resultLines())
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(i18n.T("testing.run_failed", m.err)) + "\n")
		}
		if m.report != nil {
			verdict := successStyle
			if m.report.OverallStatus != model.StatusPass {
				verdict = errorStyle
			}
			b.WriteString(verdict.Bold(true).Render(i18n.T("testing.end_of_test", m.report.OverallStatus)) + "\n")
		}
		if m.status != "" {
			b.WriteString("\n" + m.status + "\n")
		}
		b.WriteString("\n" + helpStyle.Render(i18n.T("testing.done_help")))
	}

	return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
}

func (m *testingModel) headerLines() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s: %s\n", i18n.T("testing.plan"), m.plan.Board))
	b.WriteString(fmt.Sprintf("%s: %s\n\n", i18n.T("testing.board"), m.board.String()))
	return b.String()
}

func (m *testingModel) resultLines() string {
	var b strings.Builder
	for _, res := range m.results {
		line := fmt.Sprintf("Test# %d:  %-20s %8.3f V  ", res.TestNumber, res.Description, res.MeasuredValue)
		b.WriteString(line + conclusionStyle(res.Conclusion).Render(res.Conclusion) + "\n")
	}
	return b.String()
}

// renderReportText produces the plain-text form of a report that the
// clipboard copy uses.
func renderReportText(r model.TestReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s\n", r.Barcode, r.Timestamp, r.OverallStatus)
	if r.Station != "" {
		fmt.Fprintf(&b, "Station: %s\n", r.Station)
	}
	for _, res := range r.Results {
		fmt.Fprintf(&b, "Test# %d: %s  measured %.3f V  (limits %.3f..%.3f, target %.3f)  %s\n",
			res.TestNumber, res.Description, res.MeasuredValue,
			res.LowerLimit, res.UpperLimit, res.TargetValue, res.Conclusion)
	}
	return b.String()
}
