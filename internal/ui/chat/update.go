// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/session"
	"github.com/jeranaias/rigrun-chat/internal/ui/markdown"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

var errNoSessionService = errors.New("no session service configured")

// Update handles a message and returns the next model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.notice = "Failed to load sessions: " + msg.err.Error()
			return m, nil
		}
		current := m.currentID()
		m.sessions = msg.sessions
		m.active = m.indexOf(current)
		if m.active < 0 && len(m.sessions) > 0 {
			m.active = 0
		}
		m.refresh()
		var cmds []tea.Cmd
		if id := m.currentID(); id != "" {
			cmds = append(cmds, m.activate(id))
		}
		cmds = append(cmds, m.preload())
		return m, tea.Batch(cmds...)

	case preloadedMsg:
		if msg.err != nil {
			m.logger.Debug("preload failed", "sessions", msg.sessionIDs, "error", msg.err)
		}
		return m, nil

	case sessionCreatedMsg:
		if msg.err != nil {
			m.notice = "Failed to create session: " + msg.err.Error()
			if msg.send != "" {
				m.input.SetValue(msg.send)
			}
			return m, nil
		}
		m.sessions = append([]model.SessionInfo{msg.info}, m.sessions...)
		m.active = 0
		m.opts.Coordinator.Store().Ensure(msg.info.Key)
		m.refresh()
		if msg.send != "" {
			m.send(msg.info.Key, msg.send)
		}
		return m, nil

	case activatedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Failed to load history: %v", msg.err)
		}
		if msg.sessionID == m.currentID() {
			m.refresh()
			m.viewport.GotoBottom()
		}
		return m, nil

	case updatesMsg:
		current := m.currentID()
		for _, u := range msg.updates {
			if u.SessionID == current {
				m.refresh()
				break
			}
		}
		return m, m.waitForUpdates()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey processes the screen's own bindings. Unhandled keys go to the
// input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.opts.Coordinator.AbortAll()
		m.sub.Close()
		m.cancel()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil, true
		}
		m.notice = ""
		id := m.currentID()
		if id == "" {
			m.input.Reset()
			return m, m.createSession(text), true
		}
		if m.send(id, text) {
			m.input.Reset()
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Abort):
		if id := m.currentID(); id != "" && m.opts.Coordinator.Loading(id) {
			m.opts.Coordinator.AbortRequest(id)
			m.notice = "Stopped."
		}
		return m, nil, true

	case key.Matches(msg, m.keys.NextTab), key.Matches(msg, m.keys.PrevTab):
		if len(m.sessions) < 2 {
			return m, nil, true
		}
		step := 1
		if key.Matches(msg, m.keys.PrevTab) {
			step = len(m.sessions) - 1
		}
		m.active = (m.active + step) % len(m.sessions)
		m.notice = ""
		m.refresh()
		return m, m.activate(m.currentID()), true

	case key.Matches(msg, m.keys.NewSession):
		return m, m.createSession(""), true

	case key.Matches(msg, m.keys.Reload):
		return m, tea.Batch(m.loadSessions(), m.reload(m.currentID())), true

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil, true

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil, true

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil, true
	}
	return m, nil, false
}

// send hands the text to the coordinator and reports whether it was
// accepted. The rejection reported through Options.Rejections becomes the
// notice line.
func (m *Model) send(sessionID, text string) bool {
	msg := model.NewUserChatMessage(sessionID, util.NormalizeInput(text))
	if !m.opts.Coordinator.SendMessage(m.ctx, m.params(sessionID), msg) {
		err := m.opts.Rejections.take()
		m.notice = noticeFor(err)
		m.logger.Debug("send rejected", "session", sessionID, "error", err)
		return false
	}
	m.refresh()
	m.viewport.GotoBottom()
	return true
}

func noticeFor(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		return "Please enter a message."
	case errors.Is(err, session.ErrBusy):
		return "Still answering, press Esc to stop."
	case errors.Is(err, session.ErrNoToken):
		return "Not logged in. Run 'rigrun-chat login' first."
	case errors.Is(err, session.ErrNoSession):
		return "No session selected."
	case err == nil:
		return "Message not sent."
	default:
		return err.Error()
	}
}

func (m Model) indexOf(sessionID string) int {
	if sessionID == "" {
		return -1
	}
	for i, s := range m.sessions {
		if s.Key == sessionID {
			return i
		}
	}
	return -1
}

// layout sizes the viewport and input to the window.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	// header, status bar, input
	reserved := 3
	if m.showHelp {
		reserved += 4
	}
	h := m.height - reserved
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.input.Width = m.width - 4

	if m.opts.MarkdownStyle != "" {
		width := bodyWidth(m.width) - 2
		if m.md.Width() != width {
			md, err := markdown.New(width, m.opts.MarkdownStyle)
			if err != nil {
				m.logger.Warn("markdown rendering disabled", "error", err)
			}
			m.md = md
		}
	}
}

// refresh re-renders the shown session into the viewport, keeping the
// scroll position at the bottom when it was there.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	id := m.currentID()
	var content string
	if id != "" {
		msgs := m.opts.Coordinator.Messages(id)
		live := ""
		if m.opts.Coordinator.Loading(id) && len(msgs) > 0 {
			live = msgs[len(msgs)-1].ID
		}
		content = renderMessages(m.theme, m.md, msgs, live, m.viewport.Width, m.opts.ShowReasoning)
	}
	m.viewport.SetContent(content)
	if atBottom {
		m.viewport.GotoBottom()
	}
}
