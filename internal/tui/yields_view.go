// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// yields_view.go is the yield drill-down: board name, revision, variant and
// serial range narrow the report set, then yield and failure Pareto panes
// summarize it.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/i18n"
	"github.com/mesa-nmanteufel/testhub/internal/model"
	"github.com/mesa-nmanteufel/testhub/internal/stats"
)

type yieldsStage int

const (
	yieldsStageBoard yieldsStage = iota
	yieldsStageRevision
	yieldsStageVariant
	yieldsStageSerials
	yieldsStageResults
)

// anyVariant is the synthetic first choice in the variant list.
const anyVariant = ""

type yieldsModel struct {
	stage   yieldsStage
	choices []string
	cursor  int

	board    string
	revision string
	variant  string

	serialFrom textinput.Model
	serialTo   textinput.Model
	focusTo    bool // false = editing "from", true = editing "to"

	filter    model.ReportFilter
	yield     model.YieldStats
	firstPass model.YieldStats
	pareto    []model.FailureModeCount

	status string
	err    error
}

func newYieldsModel() *yieldsModel {
	m := &yieldsModel{stage: yieldsStageBoard}
	names, err := db.ListBoardNames()
	if err != nil {
		m.err = err
		return m
	}
	if len(names) == 0 {
		m.status = i18n.T("yields.no_boards")
	}
	m.choices = names
	return m
}

func (m *yieldsModel) Init() tea.Cmd { return nil }

// enterStage loads the choice list for the next drill-down stage.
func (m *yieldsModel) enterStage(stage yieldsStage) {
	m.stage = stage
	m.cursor = 0

	switch stage {
	case yieldsStageBoard:
		names, err := db.ListBoardNames()
		if err != nil {
			m.err = err
			return
		}
		m.choices = names

	case yieldsStageRevision:
		revs, err := db.ListRevisions(m.board)
		if err != nil {
			m.err = err
			return
		}
		m.choices = revs

	case yieldsStageVariant:
		variants, err := db.ListVariants(m.board, m.revision)
		if err != nil {
			m.err = err
			return
		}
		m.choices = append([]string{anyVariant}, variants...)

	case yieldsStageSerials:
		lo, hi, err := db.SerialBounds(m.board, m.revision, m.variant)
		if err != nil {
			m.err = err
			return
		}
		from := textinput.New()
		from.SetValue(lo)
		from.CharLimit = 16
		from.Width = 12
		from.Focus()
		to := textinput.New()
		to.SetValue(hi)
		to.CharLimit = 16
		to.Width = 12
		m.serialFrom = from
		m.serialTo = to
		m.focusTo = false

	case yieldsStageResults:
		m.filter = model.ReportFilter{
			Board:      m.board,
			Revision:   m.revision,
			Variant:    m.variant,
			SerialFrom: strings.TrimSpace(m.serialFrom.Value()),
			SerialTo:   strings.TrimSpace(m.serialTo.Value()),
		}
		reports, err := db.GetReports(m.filter)
		if err != nil {
			m.err = err
			return
		}
		m.yield = stats.Yield(reports)
		m.firstPass = stats.FirstPassYield(reports)
		m.pareto = stats.FailurePareto(reports)
	}
}

func (m *yieldsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.stage {
	case yieldsStageSerials:
		return m.updateSerials(keyMsg)
	case yieldsStageResults:
		switch keyMsg.String() {
		case "q", "esc":
			m.enterStage(yieldsStageSerials)
		}
		return m, nil
	default:
		return m.updateList(keyMsg)
	}
}

func (m *yieldsModel) updateList(keyMsg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch keyMsg.String() {
	case "q", "esc":
		switch m.stage {
		case yieldsStageBoard:
			return m, func() tea.Msg { return backToMenuMsg{} }
		case yieldsStageRevision:
			m.enterStage(yieldsStageBoard)
		case yieldsStageVariant:
			m.enterStage(yieldsStageRevision)
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.choices) == 0 {
			return m, nil
		}
		choice := m.choices[m.cursor]
		switch m.stage {
		case yieldsStageBoard:
			m.board = choice
			m.enterStage(yieldsStageRevision)
		case yieldsStageRevision:
			m.revision = choice
			m.enterStage(yieldsStageVariant)
		case yieldsStageVariant:
			m.variant = choice
			m.enterStage(yieldsStageSerials)
		}
	}
	return m, nil
}

func (m *yieldsModel) updateSerials(keyMsg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch keyMsg.Type {
	case tea.KeyEsc:
		m.enterStage(yieldsStageVariant)
		return m, nil
	case tea.KeyTab, tea.KeyShiftTab:
		m.focusTo = !m.focusTo
		if m.focusTo {
			m.serialFrom.Blur()
			m.serialTo.Focus()
		} else {
			m.serialTo.Blur()
			m.serialFrom.Focus()
		}
		return m, nil
	case tea.KeyEnter:
		m.enterStage(yieldsStageResults)
		return m, nil
	}

	var cmd tea.Cmd
	if m.focusTo {
		m.serialTo, cmd = m.serialTo.Update(keyMsg)
	} else {
		m.serialFrom, cmd = m.serialFrom.Update(keyMsg)
	}
	return m, cmd
}

func (m *yieldsModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error loading yield data: %v", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("📈 "+i18n.T("yields.title")) + "\n\n")
	b.WriteString(helpStyle.Render(m.breadcrumb()) + "\n\n")

	switch m.stage {
	case yieldsStageSerials:
		b.WriteString(i18n.T("yields.serial_range") + "\n\n")
		b.WriteString(i18n.T("yields.serial_from") + " " + m.serialFrom.View() + "\n")
		b.WriteString(i18n.T("yields.serial_to") + "   " + m.serialTo.View() + "\n\n")
		b.WriteString(helpStyle.Render(i18n.T("yields.serial_help")))

	case yieldsStageResults:
		b.WriteString(m.resultsPanes())
		b.WriteString("\n" + helpStyle.Render(i18n.T("yields.results_help")))

	default:
		var prompt string
		switch m.stage {
		case yieldsStageBoard:
			prompt = i18n.T("yields.pick_board")
		case yieldsStageRevision:
			prompt = i18n.T("yields.pick_revision")
		case yieldsStageVariant:
			prompt = i18n.T("yields.pick_variant")
		}
		b.WriteString(prompt + "\n\n")
		if len(m.choices) == 0 {
			b.WriteString(helpStyle.Render(m.status))
		}
		for i, choice := range m.choices {
			display := choice
			if choice == anyVariant && m.stage == yieldsStageVariant {
				display = i18n.T("yields.all_variants")
			}
			if m.cursor == i {
				b.WriteString(selectedItemStyle.Render("▸ "+display) + "\n")
			} else {
				b.WriteString(itemStyle.Render("  "+display) + "\n")
			}
		}
		b.WriteString("\n" + helpStyle.Render(i18n.T("yields.list_help")))
	}

	return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
}

// breadcrumb renders the already-selected drill-down path.
func (m *yieldsModel) breadcrumb() string {
	parts := []string{}
	if m.board != "" {
		parts = append(parts, m.board)
	}
	if m.stage > yieldsStageRevision && m.revision != "" {
		parts = append(parts, m.revision)
	}
	if m.stage > yieldsStageVariant {
		if m.variant == anyVariant {
			parts = append(parts, i18n.T("yields.all_variants"))
		} else {
			parts = append(parts, m.variant)
		}
	}
	if len(parts) == 0 {
		return i18n.T("yields.breadcrumb_root")
	}
	return strings.Join(parts, " › ")
}

// resultsPanes renders the yield summary and the failure Pareto side by side.
func (m *yieldsModel) resultsPanes() string {
	paneTitleStyle := lipgloss.NewStyle().Bold(true)

	var yieldLines []string
	yieldLines = append(yieldLines, paneTitleStyle.Render(i18n.T("yields.yield_pane")), "")
	yieldLines = append(yieldLines,
		fmt.Sprintf("%s %d", i18n.T("yields.tested"), m.yield.Tested),
		successStyle.Render(fmt.Sprintf("%s %d", i18n.T("yields.passed"), m.yield.Passed)),
		errorStyle.Render(fmt.Sprintf("%s %d", i18n.T("yields.failed"), m.yield.Failed)),
		"",
		fmt.Sprintf("%s %.1f%%", i18n.T("yields.yield"), m.yield.Percent),
		fmt.Sprintf("%s %.1f%%", i18n.T("yields.first_pass"), m.firstPass.Percent),
	)

	var paretoLines []string
	paretoLines = append(paretoLines, paneTitleStyle.Render(i18n.T("yields.pareto_pane")), "")
	if len(m.pareto) == 0 {
		paretoLines = append(paretoLines, helpStyle.Render(i18n.T("yields.no_failures")))
	} else {
		maxCount := m.pareto[0].Count
		for _, fm := range m.pareto {
			barLen := 1
			if maxCount > 0 {
				barLen = fm.Count * 20 / maxCount
				if barLen < 1 {
					barLen = 1
				}
			}
			bar := specialStyle.Render(strings.Repeat("█", barLen))
			paretoLines = append(paretoLines, fmt.Sprintf("%-20s %s %d", fm.Label, bar, fm.Count))
		}
	}

	left := paneStyle.Width(30).Render(lipgloss.JoinVertical(lipgloss.Left, yieldLines...))
	right := paneStyle.Width(50).MarginLeft(2).Render(lipgloss.JoinVertical(lipgloss.Left, paretoLines...))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}
