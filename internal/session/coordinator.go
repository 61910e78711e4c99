// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/sse"
	"github.com/jeranaias/rigrun-chat/internal/store"
	"github.com/jeranaias/rigrun-chat/internal/stream"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// DefaultPreloadConcurrency bounds concurrent history fetches in Preload.
const DefaultPreloadConcurrency = 4

// =============================================================================
// COLLABORATORS
// =============================================================================

// Transport opens one streaming request. It must deliver every event to
// onEvent before returning, stop delivering once ctx is cancelled, and
// return the context error in that case.
type Transport interface {
	SendRequest(ctx context.Context, params model.RequestParams, token string, messages []model.ChatMessage, onEvent func(ev sse.Event)) error
}

// HistoryService fetches a stored transcript.
type HistoryService interface {
	GetHistory(ctx context.Context, token, sessionID string) ([]model.Message, error)
}

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config holds the optional collaborators of a Coordinator.
type Config struct {
	// History is used by Activate and Preload. Without it, activating an
	// unknown session starts an empty transcript.
	History HistoryService

	// Store holds the transcripts. A new store is created when nil.
	Store *store.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnPrecondition is called when SendMessage rejects a message, so the
	// front end can show a notice.
	OnPrecondition func(err error)

	// PreloadConcurrency bounds concurrent history fetches (default 4).
	PreloadConcurrency int
}

// Update tells subscribers that a session changed.
type Update struct {
	SessionID string
	Loading   bool
}

// =============================================================================
// REQUEST
// =============================================================================

// Request is the handle on one accepted send.
type Request struct {
	SessionID string
	MessageID string

	done chan struct{}

	mu      sync.Mutex
	final   model.Message
	err     error
	aborted bool
}

// Done is closed when the request has finished and its session is idle again.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request finishes or ctx is done, and returns the
// final assistant message.
func (r *Request) Wait(ctx context.Context) (model.Message, error) {
	select {
	case <-r.done:
		return r.Result()
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}
}

// Result returns the final message and the transport error, if any. An
// error event from the backend is not an error here: its text is the
// message content.
func (r *Request) Result() (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.final.Clone(), r.err
}

// Aborted reports whether the request ended by cancellation.
func (r *Request) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

func (r *Request) finish(msg model.Message, err error, aborted bool) {
	r.mu.Lock()
	r.final = msg
	r.err = err
	r.aborted = aborted
	r.mu.Unlock()
	close(r.done)
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator runs chat requests for any number of sessions.
type Coordinator struct {
	transport Transport
	tokens    TokenSource
	history   HistoryService
	store     *store.Store
	registry  *Registry
	logger    *slog.Logger

	onPrecondition func(err error)
	preloadLimit   int

	wg sync.WaitGroup

	subMu  sync.Mutex
	subs   map[int]*Subscription
	nextID int
}

// NewCoordinator creates a coordinator.
func NewCoordinator(transport Transport, tokens TokenSource, cfg Config) *Coordinator {
	c := &Coordinator{
		transport:      transport,
		tokens:         tokens,
		history:        cfg.History,
		store:          cfg.Store,
		registry:       NewRegistry(),
		logger:         cfg.Logger,
		onPrecondition: cfg.OnPrecondition,
		preloadLimit:   cfg.PreloadConcurrency,
		subs:           make(map[int]*Subscription),
	}
	if c.store == nil {
		c.store = store.New()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.preloadLimit <= 0 {
		c.preloadLimit = DefaultPreloadConcurrency
	}
	c.store.Listen(c.publish)
	return c
}

// Store returns the underlying transcript store.
func (c *Coordinator) Store() *store.Store {
	return c.store
}

// Messages returns a copy of the session's transcript.
func (c *Coordinator) Messages(sessionID string) []model.Message {
	return c.store.Messages(sessionID)
}

// Loading reports whether the session has a request in flight.
func (c *Coordinator) Loading(sessionID string) bool {
	return c.registry.Active(sessionID)
}

// LoadingSessions returns the ids of all sessions with a request in flight.
func (c *Coordinator) LoadingSessions() []string {
	return c.registry.Sessions()
}

// Wait blocks until every stream started by this coordinator has finished,
// or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// SENDING
// =============================================================================

// SendMessage is Send for front ends that only need a yes or no. A
// rejected message is reported to the OnPrecondition hook and returns false.
// Only precondition failures return false; a request that later fails
// still returns true and shows the failure in the transcript.
func (c *Coordinator) SendMessage(ctx context.Context, params model.RequestParams, msg model.ChatMessage) bool {
	_, err := c.Send(ctx, params, msg)
	if err == nil {
		return true
	}
	if c.onPrecondition != nil {
		c.onPrecondition(err)
	}
	if !IsPrecondition(err) {
		c.logger.Error("send failed", "session", params.SessionID, "error", err)
	}
	return false
}

// Send validates the message, appends the user message and an assistant
// placeholder to the session in one update and starts streaming on a new
// goroutine. Rejections are *PreconditionError values and leave the session
// untouched.
//
// The stream runs until a terminal event, AbortRequest, a transport failure
// or the cancellation of ctx.
func (c *Coordinator) Send(ctx context.Context, params model.RequestParams, msg model.ChatMessage) (*Request, error) {
	content := util.NormalizeInput(msg.Content)
	sessionID := params.SessionID
	if sessionID == "" {
		sessionID = msg.SessionID
	}

	if (model.ChatMessage{Content: content}).IsBlank() {
		return nil, precondition(sessionID, ErrEmptyMessage, nil)
	}
	if sessionID == "" {
		return nil, precondition("", ErrNoSession, nil)
	}
	if c.registry.Active(sessionID) {
		return nil, precondition(sessionID, ErrBusy, nil)
	}

	var token string
	var tokenErr error
	if c.tokens != nil {
		token, tokenErr = c.tokens.Token(ctx)
	}
	if tokenErr != nil || token == "" {
		return nil, precondition(sessionID, ErrNoToken, tokenErr)
	}

	params = params.WithSession(sessionID)
	user := model.NewUserMessage(sessionID, content)
	state := stream.NewState(sessionID)

	streamCtx, cancel := context.WithCancel(ctx)
	h, err := c.registry.Register(sessionID, cancel, state.Message.ID)
	if err != nil {
		cancel()
		return nil, precondition(sessionID, ErrBusy, nil)
	}

	if err := c.store.Append(sessionID, user, state.Message); err != nil {
		c.registry.Release(sessionID, h)
		cancel()
		return nil, fmt.Errorf("failed to append messages: %w", err)
	}

	req := &Request{
		SessionID: sessionID,
		MessageID: state.Message.ID,
		done:      make(chan struct{}),
	}
	outbound := []model.ChatMessage{{SessionID: sessionID, Role: model.RoleUser, Content: content}}

	c.logger.Debug("request started", "session", sessionID, "message", req.MessageID)

	c.wg.Add(1)
	go c.run(streamCtx, cancel, h, req, state, params, token, outbound)
	return req, nil
}

// run drives one stream. Events are reduced in arrival order on the
// transport's goroutine and every change is written back to the store.
func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, h *Handle, req *Request, st stream.State,
	params model.RequestParams, token string, outbound []model.ChatMessage) {
	defer c.wg.Done()
	defer cancel()

	sessionID := req.SessionID
	terminal := false

	onEvent := func(ev sse.Event) {
		if terminal {
			return
		}
		next, eff, err := stream.Reduce(st, ev)
		if err != nil {
			c.logger.Warn("dropping malformed event",
				"session", sessionID, "type", ev.Type, "error", err)
			return
		}
		st = next

		switch eff {
		case stream.EffectUpdate:
			c.write(sessionID, st.Message)
		case stream.EffectDone, stream.EffectError:
			terminal = true
			c.finalize(sessionID, h, st.Message)
		}
	}

	err := c.transport.SendRequest(ctx, params, token, outbound, onEvent)
	defer func() {
		c.logger.Debug("request finished", "session", sessionID,
			"duration", time.Since(h.Started()), "events", st.Deltas)
	}()

	switch {
	case terminal:
		req.finish(st.Message, nil, false)

	case ctx.Err() != nil:
		// Aborted: keep whatever arrived as the final text
		c.finalize(sessionID, h, st.Message)
		c.logger.Debug("request aborted", "session", sessionID)
		req.finish(c.current(sessionID, st.Message), ctx.Err(), true)

	case err != nil:
		failed := st.Message
		failed.Content = FailureContent
		c.finalize(sessionID, h, failed)
		c.logger.Warn("request failed", "session", sessionID, "error", err)
		req.finish(failed, err, false)

	default:
		// The transport ended without a terminal event; end of stream is
		// authoritative.
		st.Final = true
		c.finalize(sessionID, h, st.Message)
		req.finish(st.Message, nil, false)
	}
}

// write stores an intermediate update. A frozen message (the request was
// aborted meanwhile) is left as it is.
func (c *Coordinator) write(sessionID string, msg model.Message) {
	if err := c.store.Upsert(sessionID, msg); err != nil && !errors.Is(err, store.ErrFrozen) {
		c.logger.Warn("failed to store update", "session", sessionID, "error", err)
	}
}

// finalize writes the last state of a message, freezes it and releases the
// request's handle.
func (c *Coordinator) finalize(sessionID string, h *Handle, msg model.Message) {
	c.write(sessionID, msg)
	if err := c.store.Freeze(sessionID, msg.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("failed to freeze message", "session", sessionID, "error", err)
	}
	if c.registry.Release(sessionID, h) {
		c.publish(sessionID)
	}
}

// current returns the stored version of a message, or fallback.
func (c *Coordinator) current(sessionID string, fallback model.Message) model.Message {
	if msg, ok := c.store.Get(sessionID, fallback.ID); ok {
		return msg
	}
	return fallback
}

// =============================================================================
// ABORT
// =============================================================================

// AbortRequest cancels the session's in-flight request. The partial message
// becomes final as it is. Without a request in flight it does nothing.
func (c *Coordinator) AbortRequest(sessionID string) {
	h, ok := c.registry.Take(sessionID)
	if !ok {
		return
	}
	if err := h.Cancel(); err != nil {
		c.logger.Debug("ignoring cancel failure", "session", sessionID, "error", err)
	}
	if err := c.store.Freeze(sessionID, h.MessageID()); err != nil {
		c.logger.Debug("nothing to freeze on abort", "session", sessionID, "error", err)
	}
	c.publish(sessionID)
}

// AbortAll cancels every in-flight request.
func (c *Coordinator) AbortAll() {
	for _, id := range c.registry.Sessions() {
		c.AbortRequest(id)
	}
}

// =============================================================================
// HISTORY
// =============================================================================

// Activate makes a session current. A session already in the store keeps
// its in-memory transcript; otherwise its history is fetched.
func (c *Coordinator) Activate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return precondition("", ErrNoSession, nil)
	}
	if c.store.Has(sessionID) {
		return nil
	}
	if c.history == nil {
		c.store.Ensure(sessionID)
		return nil
	}

	token, err := c.tokenFor(ctx, sessionID)
	if err != nil {
		return err
	}

	msgs, err := c.history.GetHistory(ctx, token, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load history for session %s: %w", sessionID, err)
	}
	if !c.store.Load(sessionID, msgs) {
		c.logger.Debug("session populated while history loaded", "session", sessionID)
	}
	return nil
}

// Preload activates several sessions concurrently.
func (c *Coordinator) Preload(ctx context.Context, sessionIDs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.preloadLimit)

	for _, id := range sessionIDs {
		id := id
		g.Go(func() error {
			return c.Activate(ctx, id)
		})
	}
	return g.Wait()
}

// Reload drops the in-memory transcript of an idle session and fetches it
// again.
func (c *Coordinator) Reload(ctx context.Context, sessionID string) error {
	if c.registry.Active(sessionID) {
		return precondition(sessionID, ErrBusy, nil)
	}
	c.store.Delete(sessionID)
	return c.Activate(ctx, sessionID)
}

// Forget aborts the session's request and drops its transcript, as after
// the session was deleted.
func (c *Coordinator) Forget(sessionID string) {
	c.AbortRequest(sessionID)
	c.store.Delete(sessionID)
}

func (c *Coordinator) tokenFor(ctx context.Context, sessionID string) (string, error) {
	if c.tokens == nil {
		return "", precondition(sessionID, ErrNoToken, nil)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		return "", precondition(sessionID, ErrNoToken, err)
	}
	return token, nil
}
