// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/session"
	"github.com/jeranaias/rigrun-chat/internal/ui/markdown"
	"github.com/jeranaias/rigrun-chat/internal/ui/styles"
)

// SessionService lists and creates sessions on the backend.
type SessionService interface {
	ListSessions(ctx context.Context, token string) ([]model.SessionInfo, error)
	CreateSession(ctx context.Context, token, name string) (model.SessionInfo, error)
}

// Options are the collaborators of the chat screen.
type Options struct {
	Coordinator *session.Coordinator
	Sessions    SessionService
	Tokens      session.TokenSource

	// Params builds the request params for a session.
	Params func(sessionID string) model.RequestParams

	Logger        *slog.Logger
	Theme         *styles.Theme
	ShowReasoning bool

	// MarkdownStyle is the glamour style for finished replies. Empty
	// shows replies as plain text.
	MarkdownStyle string

	// Rejections receives the Coordinator's OnPrecondition reports. The
	// screen turns the latest one into its notice line.
	Rejections *Rejections
}

// Rejections holds the last send rejection reported by a Coordinator.
// Its Report method is meant for session.Config.OnPrecondition.
type Rejections struct {
	mu   sync.Mutex
	last error
}

// Report records err as the latest rejection.
func (r *Rejections) Report(err error) {
	r.mu.Lock()
	r.last = err
	r.mu.Unlock()
}

// take returns and clears the latest rejection.
func (r *Rejections) take() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.last
	r.last = nil
	return err
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	opts   Options
	theme  *styles.Theme
	keys   KeyMap
	logger *slog.Logger

	// ctx ends the subscription loop on quit
	ctx    context.Context
	cancel context.CancelFunc
	sub    *session.Subscription

	sessions []model.SessionInfo
	active   int

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	md       *markdown.Renderer

	width    int
	height   int
	showHelp bool
	notice   string
	ready    bool
	quitting bool
}

// New creates the chat screen.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = theme.InputPrompt.Render("> ")
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Streaming

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sub:      opts.Coordinator.Subscribe(),
		active:   -1,
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  sp,
		help:     help.New(),
	}
}

// Init loads the session list and starts listening for updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadSessions(),
		m.waitForUpdates(),
		m.spinner.Tick,
		textinput.Blink,
	)
}

// Run starts the chat screen on the alternate screen and blocks until the
// user quits.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// currentID returns the key of the shown session, or "".
func (m Model) currentID() string {
	if m.active < 0 || m.active >= len(m.sessions) {
		return ""
	}
	return m.sessions[m.active].Key
}

func (m Model) token() (string, error) {
	if m.opts.Tokens == nil {
		return "", session.ErrNoToken
	}
	return m.opts.Tokens.Token(m.ctx)
}

func (m Model) params(sessionID string) model.RequestParams {
	if m.opts.Params != nil {
		return m.opts.Params(sessionID)
	}
	return model.RequestParams{SessionID: sessionID, HistoryEnabled: true}
}
