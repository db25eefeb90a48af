// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package tui provides the terminal user interface for testhub.
// This file, tui.go, is the main entry point for the TUI, containing the
// top-level model that acts as a router to all other sub-views.
package tui // import "github.com/mesa-nmanteufel/testhub/internal/tui"

import (
	"fmt"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/mesa-nmanteufel/testhub/internal/config"
	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/i18n"
	"github.com/mesa-nmanteufel/testhub/internal/logging"
	"github.com/mesa-nmanteufel/testhub/internal/model"
	"github.com/mesa-nmanteufel/testhub/internal/stats"
	"github.com/mesa-nmanteufel/testhub/internal/testplan"
)

// viewState represents which part of the UI is currently active.
type viewState int

const (
	// menuView is the main dashboard and navigation menu.
	menuView viewState = iota
	testingView
	reportsView
	yieldsView
	redTagsView
	languageView
)

// backToMenuMsg signals that a sub-view wants to return to the main menu.
type backToMenuMsg struct{}

// dashboardDataMsg is a message containing the data for the main menu dashboard.
type dashboardDataMsg struct {
	data dashboardData
}

// languageChangedMsg is a message to signal that the language has changed and the UI should be re-initialized.
type languageChangedMsg struct{}

// dashboardData holds the summary information for the main menu view.
type dashboardData struct {
	station       string
	planCount     int
	reportsTotal  int
	reportsToday  int
	yieldToday    model.YieldStats
	unsyncedCount int
	syncMode      string
	recentLogs    []model.AuditLogEntry
	err           error
}

// mainModel is the top-level model for the TUI. It acts as a state machine
// and router, delegating updates and view rendering to the currently active sub-model.
type mainModel struct {
	cfg       config.Config
	state     viewState
	menu      menuModel
	testing   *testingModel
	reports   *reportsModel
	yields    *yieldsModel
	redTags   *redTagsModel
	language  languageModel
	dashboard dashboardData
	width     int
	height    int
	err       error
}

// menuModel holds the state for the main menu.
type menuModel struct {
	choices []string // The menu items to show.
	cursor  int      // Which menu item our cursor is pointing at.
}

// languageModel holds the state for the language selection menu.
type languageModel struct {
	choices     map[string]string // map of lang code to display name
	orderedKeys []string          // for stable iteration
	cursor      int
}

// configSaver persists the station config after a language change. Replaced
// in tests.
var configSaver = func(cfg *config.Config) error {
	return config.WriteConfigFile(cfg, false)
}

// initialModel creates the starting state of the TUI, beginning at the main menu.
func initialModel(cfg config.Config) mainModel {
	return mainModel{
		cfg:   cfg,
		state: menuView,
		menu: menuModel{
			choices: []string{
				i18n.T("menu.testing"),
				i18n.T("menu.reports"),
				i18n.T("menu.yields"),
				i18n.T("menu.red_tags"),
				i18n.T("menu.language"),
			},
		},
	}
}

// Init is the first function that will be called by the Bubble Tea runtime.
// It kicks off the initial command to load data for the dashboard.
func (m mainModel) Init() tea.Cmd {
	return refreshDashboardCmd(m.cfg)
}

// Update is the main message loop. It handles all events (like key presses and
// window size changes) and delegates them to the active sub-model.
func (m mainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keybindings that work everywhere.
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case dashboardDataMsg:
		m.dashboard = msg.data
		if msg.data.err != nil {
			m.err = msg.data.err
		}
		return m, nil

	case languageChangedMsg:
		// The language has changed. Re-initialize the entire model to apply new translations everywhere.
		newModel := initialModel(m.cfg)
		// Preserve the current window dimensions so the layout remains correct.
		newModel.width = m.width
		newModel.height = m.height
		return newModel, newModel.Init()
	}

	// Delegate updates to the currently active view.
	switch m.state {
	case testingView:
		if _, ok := msg.(backToMenuMsg); ok {
			m.state = menuView
			return m, refreshDashboardCmd(m.cfg)
		}
		var newModel tea.Model
		newModel, cmd = m.testing.Update(msg)
		m.testing = newModel.(*testingModel)

	case reportsView:
		if _, ok := msg.(backToMenuMsg); ok {
			m.state = menuView
			return m, refreshDashboardCmd(m.cfg)
		}
		var newModel tea.Model
		newModel, cmd = m.reports.Update(msg)
		m.reports = newModel.(*reportsModel)

	case yieldsView:
		if _, ok := msg.(backToMenuMsg); ok {
			m.state = menuView
			return m, refreshDashboardCmd(m.cfg)
		}
		var newModel tea.Model
		newModel, cmd = m.yields.Update(msg)
		m.yields = newModel.(*yieldsModel)

	case redTagsView:
		if _, ok := msg.(backToMenuMsg); ok {
			m.state = menuView
			return m, refreshDashboardCmd(m.cfg)
		}
		var newModel tea.Model
		newModel, cmd = m.redTags.Update(msg)
		m.redTags = newModel.(*redTagsModel)

	case languageView:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "q", "esc":
				m.state = menuView
				return m, refreshDashboardCmd(m.cfg)
			case "up", "k":
				if m.language.cursor > 0 {
					m.language.cursor--
				}
			case "down", "j":
				if m.language.cursor < len(m.language.orderedKeys)-1 {
					m.language.cursor++
				}
			case "enter":
				langCode := m.language.orderedKeys[m.language.cursor]
				i18n.SetLang(langCode)
				viper.Set("language", langCode)
				m.cfg.Language = langCode
				if err := configSaver(&m.cfg); err != nil {
					m.err = fmt.Errorf("failed to save config: %w", err)
				}

				// Signal that the language has changed so the entire UI can be re-initialized.
				return m, func() tea.Msg { return languageChangedMsg{} }
			}
		}

	default: // menuView
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "q":
				return m, tea.Quit
			case "up", "k":
				if m.menu.cursor > 0 {
					m.menu.cursor--
				}
			case "down", "j":
				if m.menu.cursor < len(m.menu.choices)-1 {
					m.menu.cursor++
				}
			case "enter":
				switch m.menu.cursor {
				case 0: // Testing
					m.state = testingView
					m.testing = newTestingModel(m.cfg)
					var updatedModel tea.Model
					updatedModel, cmd = m.testing.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
					m.testing = updatedModel.(*testingModel)
					return m, tea.Batch(m.testing.Init(), cmd)
				case 1: // Reports
					m.state = reportsView
					m.reports = newReportsModel()
					var updatedModel tea.Model
					updatedModel, cmd = m.reports.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
					m.reports = updatedModel.(*reportsModel)
					return m, tea.Batch(m.reports.Init(), cmd)
				case 2: // Yields
					m.state = yieldsView
					m.yields = newYieldsModel()
					return m, nil
				case 3: // Red Tags
					m.state = redTagsView
					m.redTags = newRedTagsModel(m.cfg.Station, m.cfg.Sync)
					return m, m.redTags.Init()
				case 4: // Language
					m.state = languageView
					m.language = newLanguageModel()
					return m, nil
				}
			case "L":
				// "L" opens the language menu from anywhere on the dashboard.
				m.state = languageView
				m.language = newLanguageModel()
				return m, nil
			}
		}
	}

	return m, cmd
}

// View renders the TUI. It's called after every Update and delegates rendering
// to the currently active sub-model.
func (m mainModel) View() string {
	if m.err != nil {
		errorViewStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(1, 2)
		return errorViewStyle.Render(fmt.Sprintf("An error occurred: %v", m.err))
	}

	switch m.state {
	case testingView:
		return m.testing.View()
	case reportsView:
		return m.reports.View()
	case yieldsView:
		return m.yields.View()
	case redTagsView:
		return m.redTags.View()
	case languageView:
		return m.language.View()
	default: // menuView
		return m.menu.View(m.dashboard, m.width, m.height)
	}
}

// formatLabelPadding aligns a label/value pair within labelWidth columns.
func formatLabelPadding(label, value string, labelWidth int) string {
	if labelWidth <= 0 || len(label) >= labelWidth {
		return label + " " + value
	}
	return label + strings.Repeat(" ", labelWidth-len(label)) + " " + value
}

// View renders the main menu and dashboard.
func (m menuModel) View(data dashboardData, width, height int) string {
	// Title (i18n)
	title := mainTitleStyle.Render("🔬 " + i18n.T("dashboard.title"))
	subTitle := helpStyle.Render(i18n.T("dashboard.subtitle", data.station))
	header := lipgloss.JoinVertical(lipgloss.Left, title, subTitle)

	paneTitleStyle := lipgloss.NewStyle().Bold(true)

	// Menu List (Left Pane)
	var menuItems []string
	menuItems = append(menuItems, paneTitleStyle.Render(i18n.T("menu.navigation")), "")
	for i, choice := range m.choices {
		if m.cursor == i {
			menuItems = append(menuItems, selectedItemStyle.Render("▸ "+choice))
		} else {
			menuItems = append(menuItems, itemStyle.Render("  "+choice))
		}
	}
	menuContent := lipgloss.JoinVertical(lipgloss.Left, menuItems...)

	// Dashboard (Right Pane)
	var dashboardItems []string
	dashboardItems = append(dashboardItems, paneTitleStyle.Render(i18n.T("dashboard.station_status")), "")

	yieldLine := i18n.T("dashboard.no_tests_today")
	if data.yieldToday.Tested > 0 {
		yieldLine = fmt.Sprintf("%d / %d (%.1f%%)", data.yieldToday.Passed, data.yieldToday.Tested, data.yieldToday.Percent)
		if data.yieldToday.Failed > 0 {
			yieldLine = specialStyle.Render(yieldLine)
		} else {
			yieldLine = successStyle.Render(yieldLine)
		}
	}

	syncLine := helpStyle.Render(i18n.T("dashboard.sync_off"))
	if data.syncMode != "" && data.syncMode != "off" {
		if data.unsyncedCount > 0 {
			syncLine = specialStyle.Render(i18n.T("dashboard.reports_pending", data.unsyncedCount))
		} else {
			syncLine = successStyle.Render(i18n.T("dashboard.all_synced"))
		}
	}

	statusItems := []struct {
		label string
		value string
	}{
		{i18n.T("dashboard.plans_loaded"), fmt.Sprintf("%d", data.planCount)},
		{i18n.T("dashboard.reports_stored"), fmt.Sprintf("%d (%d today)", data.reportsTotal, data.reportsToday)},
		{i18n.T("dashboard.yield_today"), yieldLine},
		{i18n.T("dashboard.sync"), syncLine},
	}

	maxLabelLen := 0
	for _, item := range statusItems {
		if len(item.label) > maxLabelLen {
			maxLabelLen = len(item.label)
		}
	}
	for _, item := range statusItems {
		dashboardItems = append(dashboardItems, formatLabelPadding(item.label, item.value, maxLabelLen))
	}

	// Recent Activity
	dashboardItems = append(dashboardItems, "", "", paneTitleStyle.Render(i18n.T("dashboard.recent_activity")), "")

	// Layout
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footerStyle.Render(""))
	paneHeight := height - headerHeight - footerHeight - 2 // -2 for newlines around mainArea

	menuWidth := 34
	dashboardWidth := width - 4 - menuWidth - 2

	if len(data.recentLogs) == 0 {
		dashboardItems = append(dashboardItems, helpStyle.Render(i18n.T("dashboard.no_recent_activity")))
	} else {
		for _, entry := range data.recentLogs {
			ts := entry.Timestamp
			if len(ts) > 13 {
				ts = ts[4:13] // MMDD_HHMM
			}

			innerDashboardWidth := dashboardWidth - 4 - 2
			availableWidth := innerDashboardWidth - len(ts) - 1

			styledAction := auditActionStyle(entry.Action).Render(entry.Action)
			detailsWidth := availableWidth - len(entry.Action) - 1
			if detailsWidth < 10 {
				detailsWidth = 10
			}
			details := entry.Details
			if len(details) > detailsWidth {
				details = details[:detailsWidth-3] + "..."
			}

			logLine := lipgloss.JoinHorizontal(lipgloss.Left,
				helpStyle.Render(ts), " ", styledAction, " ", helpStyle.Render(details))
			dashboardItems = append(dashboardItems, logLine)
		}
	}
	dashboardContent := lipgloss.JoinVertical(lipgloss.Left, dashboardItems...)

	leftPane := paneStyle.Width(menuWidth).Height(paneHeight).Render(menuContent)
	rightPane := paneStyle.Width(dashboardWidth).Height(paneHeight).MarginLeft(2).Render(dashboardContent)

	mainArea := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	footer := footerStyle.Render(AlignFooter(i18n.T("dashboard.footer"), "", width))

	return lipgloss.JoinVertical(lipgloss.Top, header, mainArea, footer)
}

// auditActionStyle picks a color for an audit log action on the dashboard.
func auditActionStyle(action string) lipgloss.Style {
	switch {
	case strings.HasPrefix(action, "report_"):
		return successStyle
	case strings.HasPrefix(action, "red_tag_"):
		return specialStyle
	case strings.HasPrefix(action, "host_"):
		return selectedItemStyle
	default:
		return helpStyle
	}
}

// newLanguageModel creates a new model for the language selection view.
func newLanguageModel() languageModel {
	choices := i18n.GetAvailableLocales()

	keys := make([]string, 0, len(choices))
	for k := range choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return languageModel{
		choices:     choices,
		orderedKeys: keys,
		cursor:      0,
	}
}

// Init for languageModel.
func (m languageModel) Init() tea.Cmd { return nil }

// Update for languageModel.
func (m languageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) { return m, nil }

// View for languageModel.
func (m languageModel) View() string {
	title := mainTitleStyle.Render("🌐 " + i18n.T("menu.language"))

	var listItems []string
	listItems = append(listItems, titleStyle.Render(i18n.T("language.select")), "")

	for i, langCode := range m.orderedKeys {
		displayName := m.choices[langCode]
		if m.cursor == i {
			listItems = append(listItems, selectedItemStyle.Render("▸ "+displayName))
		} else {
			listItems = append(listItems, itemStyle.Render("  "+displayName))
		}
	}

	listPane := paneStyle.Width(60).Render(lipgloss.JoinVertical(lipgloss.Left, listItems...))
	helpLine := footerStyle.Render(AlignFooter(i18n.T("language.help"), "", 60))

	return lipgloss.JoinVertical(lipgloss.Left, title, "", listPane, "", helpLine)
}

// Run is the main entrypoint for the TUI. It initializes and runs the Bubble Tea program.
func Run(cfg config.Config) {
	if _, err := tea.NewProgram(initialModel(cfg), tea.WithAltScreen()).Run(); err != nil {
		logging.Errorf("TUI run error: %v", err)
		os.Exit(1)
	}
}

// refreshDashboardCmd is a tea.Cmd that fetches summary data for the main menu.
func refreshDashboardCmd(cfg config.Config) tea.Cmd {
	return func() tea.Msg {
		data := dashboardData{
			station:  cfg.Station,
			syncMode: cfg.Sync.Mode,
		}
		if plans, err := testplan.All(); err == nil {
			data.planCount = len(plans)
		}

		reports, err := db.GetReports(model.ReportFilter{})
		if err != nil {
			return dashboardDataMsg{data: dashboardData{err: err}}
		}
		data.reportsTotal = len(reports)

		today := model.Now()[:8]
		var todays []model.TestReport
		for _, r := range reports {
			if strings.HasPrefix(r.Timestamp, today) {
				todays = append(todays, r)
			}
		}
		data.reportsToday = len(todays)
		data.yieldToday = stats.Yield(todays)

		unsynced, err := db.GetUnsyncedReports()
		if err != nil {
			return dashboardDataMsg{data: dashboardData{err: err}}
		}
		data.unsyncedCount = len(unsynced)

		entries, err := db.GetAllAuditLogEntries()
		if err != nil {
			return dashboardDataMsg{data: dashboardData{err: err}}
		}
		if len(entries) > 8 {
			entries = entries[:8]
		}
		data.recentLogs = entries

		return dashboardDataMsg{data: data}
	}
}
