// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/session"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

const backendTimeout = 30 * time.Second

// preloadCount is how many listed sessions besides the shown one get their
// history fetched in the background.
const preloadCount = 5

// =============================================================================
// MESSAGES
// =============================================================================

// sessionsLoadedMsg carries the backend's session list.
type sessionsLoadedMsg struct {
	sessions []model.SessionInfo
	err      error
}

// sessionCreatedMsg carries a new session. send is the text to send once
// the session exists.
type sessionCreatedMsg struct {
	info model.SessionInfo
	send string
	err  error
}

// activatedMsg reports that a session's history is available.
type activatedMsg struct {
	sessionID string
	err       error
}

// preloadedMsg reports the end of a background history fetch.
type preloadedMsg struct {
	sessionIDs []string
	err        error
}

// updatesMsg carries coalesced coordinator notifications.
type updatesMsg struct {
	updates []session.Update
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func (m Model) loadSessions() tea.Cmd {
	if m.opts.Sessions == nil {
		return nil
	}
	svc := m.opts.Sessions
	parent := m.ctx
	return func() tea.Msg {
		token, err := m.token()
		if err != nil {
			return sessionsLoadedMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(parent, backendTimeout)
		defer cancel()

		sessions, err := svc.ListSessions(ctx, token)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

// createSession creates a session named after the first line of the text
// that prompted it, or "New chat".
func (m Model) createSession(send string) tea.Cmd {
	if m.opts.Sessions == nil {
		return func() tea.Msg {
			return sessionCreatedMsg{err: errNoSessionService}
		}
	}
	svc := m.opts.Sessions
	parent := m.ctx
	return func() tea.Msg {
		token, err := m.token()
		if err != nil {
			return sessionCreatedMsg{send: send, err: err}
		}
		name := util.TruncateRunes(util.FirstLine(send), 30)
		if name == "" {
			name = "New chat"
		}

		ctx, cancel := context.WithTimeout(parent, backendTimeout)
		defer cancel()

		info, err := svc.CreateSession(ctx, token, name)
		return sessionCreatedMsg{info: info, send: send, err: err}
	}
}

func (m Model) activate(sessionID string) tea.Cmd {
	coord := m.opts.Coordinator
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, backendTimeout)
		defer cancel()
		return activatedMsg{sessionID: sessionID, err: coord.Activate(ctx, sessionID)}
	}
}

// reload drops the shown session's transcript and fetches it again. A
// session that is answering keeps its transcript.
func (m Model) reload(sessionID string) tea.Cmd {
	coord := m.opts.Coordinator
	if sessionID == "" || coord.Loading(sessionID) {
		return nil
	}
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, backendTimeout)
		defer cancel()
		return activatedMsg{sessionID: sessionID, err: coord.Reload(ctx, sessionID)}
	}
}

// preload fetches the history of the first listed sessions other than the
// shown one, so switching tabs does not wait for the backend.
func (m Model) preload() tea.Cmd {
	current := m.currentID()
	var ids []string
	for _, s := range m.sessions {
		if len(ids) == preloadCount {
			break
		}
		if s.Key != current {
			ids = append(ids, s.Key)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	coord := m.opts.Coordinator
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, backendTimeout)
		defer cancel()
		return preloadedMsg{sessionIDs: ids, err: coord.Preload(ctx, ids)}
	}
}

// waitForUpdates blocks until the coordinator reports changes. It returns
// nil once the model's context ends.
func (m Model) waitForUpdates() tea.Cmd {
	sub := m.sub
	ctx := m.ctx
	return func() tea.Msg {
		updates, err := sub.Next(ctx)
		if err != nil {
			return nil
		}
		return updatesMsg{updates: updates}
	}
}
