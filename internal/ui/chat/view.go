// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ui/markdown"
	"github.com/jeranaias/rigrun-chat/internal/ui/styles"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

const maxTabWidth = 24

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	parts := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.input.View(),
	}
	if m.showHelp {
		parts = append(parts, m.theme.Help.Render(m.help.FullHelpView(m.keys.FullHelp())))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHeader draws one tab per session. Sessions with a stream in flight
// carry a marker.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("rigrun chat")
	if len(m.sessions) == 0 {
		return m.theme.Header.Render(title + "  " + m.theme.TabInactive.Render("no sessions, press ctrl+n"))
	}

	tabs := []string{title}
	used := lipgloss.Width(title)
	for i, s := range m.sessions {
		label := util.TruncateWidth(sessionLabel(s), maxTabWidth)
		style := m.theme.TabInactive
		if m.opts.Coordinator.Loading(s.Key) {
			label = "* " + label
			style = m.theme.TabLoading
		}
		if i == m.active {
			style = m.theme.TabActive
		}
		tab := style.Render(label)
		if m.width > 0 && used+lipgloss.Width(tab)+1 > m.width {
			tabs = append(tabs, m.theme.TabInactive.Render("..."))
			break
		}
		used += lipgloss.Width(tab) + 1
		tabs = append(tabs, tab)
	}
	return m.theme.Header.Render(strings.Join(tabs, " "))
}

// renderStatus shows the streaming state, the model of the last reply and
// the notice line.
func (m Model) renderStatus() string {
	var parts []string
	id := m.currentID()
	if id != "" && m.opts.Coordinator.Loading(id) {
		parts = append(parts, m.spinner.View()+m.theme.Streaming.Render(" streaming (esc to stop)"))
	}
	if name := lastModel(m.opts.Coordinator.Messages(id)); name != "" {
		parts = append(parts, m.theme.ModelBadge.Render(name))
	}
	if m.notice != "" {
		parts = append(parts, m.theme.Notice.Render(m.notice))
	}
	if len(parts) == 0 {
		parts = append(parts, m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

func sessionLabel(s model.SessionInfo) string {
	if s.Label != "" {
		return s.Label
	}
	return s.Key
}

func lastModel(msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant && msgs[i].Model != "" {
			return msgs[i].Model
		}
	}
	return ""
}

func bodyWidth(width int) int {
	if width <= 0 {
		width = 80
	}
	if width-4 < 10 {
		return 10
	}
	return width - 4
}

// renderMessages renders a transcript as bubbles wrapped to width. The
// message with id live is still streaming and is shown as plain text;
// finished replies go through md when it is set.
func renderMessages(theme *styles.Theme, md *markdown.Renderer, msgs []model.Message, live string, width int, showReasoning bool) string {
	w := bodyWidth(width)

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case model.RoleUser:
			b.WriteString(theme.UserLabel.Render(msg.Role.DisplayName()))
			b.WriteString("\n")
			b.WriteString(theme.UserBubble.Width(w).Render(msg.Content))
		default:
			label := msg.Role.DisplayName()
			if msg.Model != "" {
				label += " " + theme.ModelBadge.Render(msg.Model)
			}
			b.WriteString(theme.AssistantLabel.Render(label))
			b.WriteString("\n")
			if showReasoning && msg.HasReasoning() {
				b.WriteString(theme.Reasoning.Width(w).Render(msg.ReasoningContent))
				b.WriteString("\n")
			}
			switch {
			case msg.Content == "" && !msg.HasReasoning():
				b.WriteString(theme.AssistantBody.Width(w).Render("..."))
			case md != nil && msg.ID != live && msg.Content != "":
				b.WriteString(md.RenderCached(msg.ID, msg.Content))
			default:
				b.WriteString(theme.AssistantBody.Width(w).Render(msg.Content))
			}
			for _, c := range msg.Citations {
				b.WriteString("\n")
				b.WriteString(theme.Notice.Render("  [" + c + "]"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
