// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// redtags_view.go shows and edits the red tag (rework) notes attached to a
// scanned board.

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mesa-nmanteufel/testhub/internal/barcode"
	"github.com/mesa-nmanteufel/testhub/internal/config"
	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/i18n"
	"github.com/mesa-nmanteufel/testhub/internal/logging"
	"github.com/mesa-nmanteufel/testhub/internal/model"
	syncer "github.com/mesa-nmanteufel/testhub/internal/sync"
)

type redTagsState int

const (
	redTagsStateScan redTagsState = iota
	redTagsStateList
	redTagsStateAdd
)

type redTagsModel struct {
	station  string
	syncCfg  config.SyncConfig
	state    redTagsState
	input    textinput.Model
	message  textinput.Model
	board    model.Board
	messages []model.RedTagMessage
	status   string
	err      error
}

func newRedTagsModel(station string, syncCfg config.SyncConfig) *redTagsModel {
	ti := textinput.New()
	ti.Placeholder = "name-rev-variant-serial"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	msg := textinput.New()
	msg.Placeholder = i18n.T("red_tags.message_placeholder")
	msg.CharLimit = 200
	msg.Width = 60

	return &redTagsModel{
		station: station,
		syncCfg: syncCfg,
		state:   redTagsStateScan,
		input:   ti,
		message: msg,
	}
}

func (m *redTagsModel) Init() tea.Cmd {
	return textinput.Blink
}

// reload refreshes the message list for the current board.
func (m *redTagsModel) reload() {
	messages, err := db.GetRedTagMessages(m.board.String())
	if err != nil {
		m.err = err
		return
	}
	m.messages = messages
}

func (m *redTagsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case redTagsStateScan:
		return m.updateScan(msg)
	case redTagsStateAdd:
		return m.updateAdd(msg)
	default:
		return m.updateList(msg)
	}
}

func (m *redTagsModel) updateScan(msg tea.Msg) (tea.Model, tea.Cmd) {
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
				m.status = errorStyle.Render(i18n.T("red_tags.bad_barcode", code))
				m.input.SetValue("")
				return m, nil
			}
			m.board = board
			m.status = ""
			m.reload()
			m.state = redTagsStateList
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *redTagsModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "q", "esc":
			m.state = redTagsStateScan
			m.input.SetValue("")
			m.input.Focus()
			m.status = ""
			return m, textinput.Blink
		case "a":
			m.state = redTagsStateAdd
			m.message.SetValue("")
			m.message.Focus()
			return m, textinput.Blink
		}
	}
	return m, nil
}

func (m *redTagsModel) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEsc:
			m.state = redTagsStateList
			return m, nil
		case tea.KeyEnter:
			text := strings.TrimSpace(m.message.Value())
			if text == "" {
				return m, nil
			}
			entry := &model.RedTagMessage{
				Barcode: m.board.String(),
				Author:  m.station,
				Message: text,
			}
			if err := db.AddRedTagMessage(entry); err != nil {
				m.status = errorStyle.Render(i18n.T("red_tags.add_failed", err))
				m.state = redTagsStateList
				return m, nil
			}
			m.status = statusMessageStyle.Render(i18n.T("red_tags.added"))
			m.reload()
			m.state = redTagsStateList
			return m, m.syncCmd()
		}
	}

	var cmd tea.Cmd
	m.message, cmd = m.message.Update(msg)
	return m, cmd
}

// syncCmd pushes the updated board document in the background when git sync
// is on, so a slow remote never stalls the UI.
func (m *redTagsModel) syncCmd() tea.Cmd {
	if m.syncCfg.Mode != syncer.ModeGit {
		return nil
	}
	cfg, board := m.syncCfg, m.board
	return func() tea.Msg {
		if err := syncer.New(cfg).SyncBoardMessages(context.Background(), board); err != nil {
			logging.Warnf("red tag sync failed: %v", err)
		}
		return nil
	}
}

func (m *redTagsModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error loading red tag messages: %v", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("🏷  "+i18n.T("red_tags.title")) + "\n\n")

	switch m.state {
	case redTagsStateScan:
		b.WriteString(i18n.T("red_tags.scan_prompt") + "\n\n")
		b.WriteString(m.input.View() + "\n\n")
		if m.status != "" {
			b.WriteString(m.status + "\n\n")
		}
		b.WriteString(helpStyle.Render(i18n.T("red_tags.scan_help")))

	case redTagsStateAdd:
		b.WriteString(helpStyle.Render(m.board.String()) + "\n\n")
		b.WriteString(i18n.T("red_tags.add_prompt") + "\n\n")
		b.WriteString(m.message.View() + "\n\n")
		b.WriteString(helpStyle.Render(i18n.T("red_tags.add_help")))

	default: // redTagsStateList
		b.WriteString(helpStyle.Render(m.board.String()) + "\n\n")
		if len(m.messages) == 0 {
			b.WriteString(helpStyle.Render(i18n.T("red_tags.empty")) + "\n")
		}
		for _, entry := range m.messages {
			author := entry.Author
			if author != "" {
				author = " (" + author + ")"
			}
			b.WriteString(specialStyle.Render(entry.Timestamp) +
				helpStyle.Render(author) + "  " + entry.Message + "\n")
		}
		if m.status != "" {
			b.WriteString("\n" + m.status + "\n")
		}
		b.WriteString("\n" + helpStyle.Render(i18n.T("red_tags.list_help")))
	}

	return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
}
