// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/session"
	"github.com/jeranaias/rigrun-chat/internal/sse"
	"github.com/jeranaias/rigrun-chat/internal/ui/markdown"
	"github.com/jeranaias/rigrun-chat/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

// blockingTransport streams one delta and then holds the request open until
// it is cancelled or released.
type blockingTransport struct {
	release chan struct{}
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{release: make(chan struct{})}
}

func (b *blockingTransport) SendRequest(ctx context.Context, params model.RequestParams, token string, messages []model.ChatMessage, onEvent func(sse.Event)) error {
	onEvent(sse.Event{Type: sse.TypeDelta, Data: `{"model":"m1","content":"partial"}`})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.release:
		onEvent(sse.Done())
		return nil
	}
}

type fakeSessions struct {
	mu      sync.Mutex
	list    []model.SessionInfo
	created []string
	err     error
}

func (f *fakeSessions) ListSessions(ctx context.Context, token string) ([]model.SessionInfo, error) {
	return f.list, f.err
}

func (f *fakeSessions) CreateSession(ctx context.Context, token, name string) (model.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.SessionInfo{}, f.err
	}
	f.created = append(f.created, name)
	return model.SessionInfo{Key: "new-1", Label: name}, nil
}

func newTestModel(t *testing.T, transport session.Transport, svc SessionService) (Model, *session.Coordinator) {
	t.Helper()
	rejections := &Rejections{}
	coord := session.NewCoordinator(transport, staticTokens("tok"), session.Config{
		OnPrecondition: rejections.Report,
	})
	m := New(Options{
		Coordinator: coord,
		Sessions:    svc,
		Tokens:      staticTokens("tok"),
		Theme:       styles.NewThemeWithProfile(termenv.Ascii),
		Rejections:  rejections,
	})
	t.Cleanup(func() {
		coord.AbortAll()
		m.cancel()
		m.sub.Close()
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), coord
}

func withSessions(m Model, keys ...string) Model {
	infos := make([]model.SessionInfo, len(keys))
	for i, k := range keys {
		infos[i] = model.SessionInfo{Key: k, Label: "Chat " + k}
	}
	next, _ := m.Update(sessionsLoadedMsg{sessions: infos})
	return next.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func waitIdle(t *testing.T, coord *session.Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, coord.Wait(ctx))
}

// =============================================================================
// RENDER TESTS
// =============================================================================

func TestRenderMessages(t *testing.T) {
	theme := styles.NewThemeWithProfile(termenv.Ascii)
	msgs := []model.Message{
		{ID: "1", Role: model.RoleUser, Content: "What is Go?"},
		{ID: "2", Role: model.RoleAssistant, Content: "A language.", ReasoningContent: "thinking hard", Model: "m1", Citations: []string{"go.dev"}},
	}

	out := renderMessages(theme, nil, msgs, "", 80, true)
	for _, want := range []string{"You", "What is Go?", "Assistant", "m1", "thinking hard", "A language.", "[go.dev]"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}

	out = renderMessages(theme, nil, msgs, "", 80, false)
	if strings.Contains(out, "thinking hard") {
		t.Error("reasoning should be hidden when disabled")
	}
}

func TestRenderMessages_EmptyPlaceholder(t *testing.T) {
	theme := styles.NewThemeWithProfile(termenv.Ascii)
	out := renderMessages(theme, nil, []model.Message{model.NewAssistantPlaceholder("s1")}, "", 40, true)
	if !strings.Contains(out, "...") {
		t.Errorf("empty assistant bubble should show a placeholder, got %q", out)
	}
}

func TestRenderMessages_MarkdownOnlyWhenFinished(t *testing.T) {
	theme := styles.NewThemeWithProfile(termenv.Ascii)
	md, err := markdown.New(60, markdown.StyleNoTTY)
	require.NoError(t, err)

	msgs := []model.Message{{ID: "r1", Role: model.RoleAssistant, Content: "- first\n- second"}}

	finished := renderMessages(theme, md, msgs, "", 80, true)
	require.Contains(t, finished, "• first")

	streaming := renderMessages(theme, md, msgs, "r1", 80, true)
	require.Contains(t, streaming, "- first")
	require.NotContains(t, streaming, "• first")
}

func TestView_HeaderShowsTabs(t *testing.T) {
	m, _ := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	m = withSessions(m, "a", "b")

	view := m.View()
	require.Contains(t, view, "Chat a")
	require.Contains(t, view, "Chat b")
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestUpdate_SessionsLoadedSelectsFirst(t *testing.T) {
	m, _ := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	next, cmd := m.Update(sessionsLoadedMsg{sessions: []model.SessionInfo{{Key: "a"}, {Key: "b"}}})
	m = next.(Model)

	require.Equal(t, "a", m.currentID())
	require.NotNil(t, cmd, "selecting a session should activate it")
}

func TestUpdate_SessionsLoadError(t *testing.T) {
	m, _ := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	next, _ := m.Update(sessionsLoadedMsg{err: errors.New("boom")})
	m = next.(Model)

	require.Contains(t, m.notice, "boom")
	require.Equal(t, "", m.currentID())
}

func TestUpdate_SubmitSends(t *testing.T) {
	transport := newBlockingTransport()
	m, coord := newTestModel(t, transport, &fakeSessions{})
	m = withSessions(m, "a")

	m.input.SetValue("hello")
	m, _ = press(m, tea.KeyEnter)

	require.Equal(t, "", m.input.Value(), "accepted input should be cleared")
	require.True(t, coord.Loading("a"))

	close(transport.release)
	waitIdle(t, coord)

	msgs := coord.Messages("a")
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "partial", msgs[1].Content)
}

func TestUpdate_SubmitWhileBusyKeepsInput(t *testing.T) {
	m, coord := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	m = withSessions(m, "a")

	m.input.SetValue("first")
	m, _ = press(m, tea.KeyEnter)
	require.True(t, coord.Loading("a"))

	m.input.SetValue("second")
	m, _ = press(m, tea.KeyEnter)

	require.Equal(t, "second", m.input.Value())
	require.Contains(t, m.notice, "Still answering")
	require.Len(t, coord.Messages("a"), 2)
}

func TestUpdate_RejectionWithoutTokenShowsLoginHint(t *testing.T) {
	rejections := &Rejections{}
	coord := session.NewCoordinator(newBlockingTransport(), staticTokens(""), session.Config{
		OnPrecondition: rejections.Report,
	})
	m := New(Options{
		Coordinator: coord,
		Tokens:      staticTokens(""),
		Theme:       styles.NewThemeWithProfile(termenv.Ascii),
		Rejections:  rejections,
	})
	t.Cleanup(func() {
		m.cancel()
		m.sub.Close()
	})
	m = withSessions(m, "a")

	m.input.SetValue("hello")
	m, _ = press(m, tea.KeyEnter)

	require.Contains(t, m.notice, "Not logged in")
	require.Equal(t, "hello", m.input.Value())
	require.Empty(t, coord.Messages("a"))
	require.NoError(t, rejections.take(), "the rejection is consumed")
}

func TestUpdate_RejectionWithoutHookStillNotifies(t *testing.T) {
	coord := session.NewCoordinator(newBlockingTransport(), staticTokens("tok"), session.Config{})
	m := New(Options{Coordinator: coord, Theme: styles.NewThemeWithProfile(termenv.Ascii)})
	t.Cleanup(func() {
		coord.AbortAll()
		m.cancel()
		m.sub.Close()
	})
	m = withSessions(m, "a")

	m.input.SetValue("first")
	m, _ = press(m, tea.KeyEnter)
	m.input.SetValue("second")
	m, _ = press(m, tea.KeyEnter)

	require.Equal(t, "Message not sent.", m.notice)
}

func TestUpdate_EscAbortsCurrentSession(t *testing.T) {
	m, coord := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	m = withSessions(m, "a")

	m.input.SetValue("hello")
	m, _ = press(m, tea.KeyEnter)
	require.Eventually(t, func() bool {
		msgs := coord.Messages("a")
		return len(msgs) == 2 && msgs[1].Content == "partial"
	}, 5*time.Second, 5*time.Millisecond)

	m, _ = press(m, tea.KeyEsc)
	waitIdle(t, coord)

	require.False(t, coord.Loading("a"))
	msgs := coord.Messages("a")
	require.Equal(t, "partial", msgs[len(msgs)-1].Content, "abort keeps the partial reply")
}

func TestUpdate_SubmitWithoutSessionCreatesOne(t *testing.T) {
	transport := newBlockingTransport()
	svc := &fakeSessions{}
	m, coord := newTestModel(t, transport, svc)

	text := "plan a trip to Rome with the family next spring"
	m.input.SetValue(text)
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	require.Equal(t, "", m.input.Value())

	created := cmd()
	next, _ := m.Update(created)
	m = next.(Model)

	// The session is named after the text, cut to 30 runes
	require.Equal(t, []string{"plan a trip to Rome with th..."}, svc.created)
	require.Equal(t, "new-1", m.currentID())
	require.True(t, coord.Loading("new-1"))

	close(transport.release)
	waitIdle(t, coord)
	require.Equal(t, text, coord.Messages("new-1")[0].Content)
}

func TestUpdate_NewSessionKeyUsesDefaultName(t *testing.T) {
	svc := &fakeSessions{}
	m, coord := newTestModel(t, newBlockingTransport(), svc)

	m, cmd := press(m, tea.KeyCtrlN)
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)

	require.Equal(t, []string{"New chat"}, svc.created)
	require.Equal(t, "new-1", m.currentID())
	require.False(t, coord.Loading("new-1"), "nothing to send yet")
}

func TestUpdate_CreateFailureRestoresInput(t *testing.T) {
	svc := &fakeSessions{err: errors.New("offline")}
	m, _ := newTestModel(t, newBlockingTransport(), svc)

	m.input.SetValue("hello")
	m, cmd := press(m, tea.KeyEnter)
	next, _ := m.Update(cmd())
	m = next.(Model)

	require.Equal(t, "hello", m.input.Value())
	require.Contains(t, m.notice, "offline")
}

func TestUpdate_SessionsLoadedPreloadsOthers(t *testing.T) {
	m, coord := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	m = withSessions(m, "a", "b", "c")

	cmd := m.preload()
	require.NotNil(t, cmd)
	msg, ok := cmd().(preloadedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	require.Equal(t, []string{"b", "c"}, msg.sessionIDs)
	require.True(t, coord.Store().Has("b"))
	require.True(t, coord.Store().Has("c"))
}

func TestPreload_Limit(t *testing.T) {
	m, _ := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	m = withSessions(m, "a", "b", "c", "d", "e", "f", "g", "h")

	msg := m.preload()().(preloadedMsg)
	require.Len(t, msg.sessionIDs, preloadCount)
	require.NotContains(t, msg.sessionIDs, "a", "the shown session is activated separately")

	m, _ = newTestModel(t, newBlockingTransport(), &fakeSessions{})
	m = withSessions(m, "only")
	require.Nil(t, m.preload())
}

func TestUpdate_ReloadSkipsAnsweringSession(t *testing.T) {
	transport := newBlockingTransport()
	m, coord := newTestModel(t, transport, &fakeSessions{})
	m = withSessions(m, "a")

	cmd := m.reload("a")
	require.NotNil(t, cmd)
	msg := cmd().(activatedMsg)
	require.NoError(t, msg.err)
	require.True(t, coord.Store().Has("a"))

	m.input.SetValue("hello")
	m, _ = press(m, tea.KeyEnter)
	require.True(t, coord.Loading("a"))
	require.Nil(t, m.reload("a"), "a streaming transcript is kept")

	close(transport.release)
	waitIdle(t, coord)
}

func TestUpdate_TabCyclesSessions(t *testing.T) {
	m, _ := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	m = withSessions(m, "a", "b", "c")

	m, cmd := press(m, tea.KeyTab)
	require.Equal(t, "b", m.currentID())
	require.NotNil(t, cmd)

	m, _ = press(m, tea.KeyShiftTab)
	m, _ = press(m, tea.KeyShiftTab)
	require.Equal(t, "c", m.currentID())
}

func TestUpdate_StreamKeepsRunningAcrossTabs(t *testing.T) {
	transport := newBlockingTransport()
	m, coord := newTestModel(t, transport, &fakeSessions{})
	m = withSessions(m, "a", "b")

	m.input.SetValue("hello")
	m, _ = press(m, tea.KeyEnter)
	m, _ = press(m, tea.KeyTab)

	require.Equal(t, "b", m.currentID())
	require.True(t, coord.Loading("a"), "switching tabs must not cancel the stream")

	close(transport.release)
	waitIdle(t, coord)
}

func TestUpdate_QuitAbortsEverything(t *testing.T) {
	m, coord := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	m = withSessions(m, "a")

	m.input.SetValue("hello")
	m, _ = press(m, tea.KeyEnter)
	m, cmd := press(m, tea.KeyCtrlC)

	require.True(t, m.quitting)
	require.NotNil(t, cmd)
	waitIdle(t, coord)
	require.Error(t, m.ctx.Err())
}

func TestUpdate_UpdatesMsgRearmsListener(t *testing.T) {
	m, _ := newTestModel(t, newBlockingTransport(), &fakeSessions{})
	_, cmd := m.Update(updatesMsg{updates: []session.Update{{SessionID: "a"}}})
	require.NotNil(t, cmd)
}

func TestNoticeFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{session.ErrEmptyMessage, "Please enter"},
		{session.ErrBusy, "Still answering"},
		{session.ErrNoToken, "Not logged in"},
		{session.ErrNoSession, "No session"},
		{errors.New("other"), "other"},
		{nil, "not sent"},
	}
	for _, tc := range tests {
		if got := noticeFor(tc.err); !strings.Contains(got, tc.want) {
			t.Errorf("noticeFor(%v) = %q, want it to contain %q", tc.err, got, tc.want)
		}
	}
}
