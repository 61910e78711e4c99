// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// CANCELLATION HANDLE
// =============================================================================

// Handle is the cancellation handle of one in-flight request.
type Handle struct {
	cancel    context.CancelFunc
	messageID string
	started   time.Time
}

// MessageID returns the id of the assistant message the request fills in.
func (h *Handle) MessageID() string {
	return h.messageID
}

// Started returns when the request was registered.
func (h *Handle) Started() time.Time {
	return h.started
}

// Cancel invokes the cancel function. A panic raised by it is recovered and
// returned as an error.
func (h *Handle) Cancel() (err error) {
	if h.cancel == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cancel panicked: %v", r)
		}
	}()
	h.cancel()
	return nil
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps session ids to the handle of their in-flight request.
// A session is loading exactly when it has a handle here.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register stores a new handle for the session. It fails with ErrBusy if the
// session already has one.
func (r *Registry) Register(sessionID string, cancel context.CancelFunc, messageID string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[sessionID]; ok {
		return nil, ErrBusy
	}
	h := &Handle{cancel: cancel, messageID: messageID, started: time.Now()}
	r.handles[sessionID] = h
	return h, nil
}

// Release removes h if it is still the session's handle. A handle that was
// already taken or replaced is left alone. It reports whether h was removed.
func (r *Registry) Release(sessionID string, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.handles[sessionID]; ok && cur == h {
		delete(r.handles, sessionID)
		return true
	}
	return false
}

// Take removes and returns the session's handle.
func (r *Registry) Take(sessionID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[sessionID]
	if ok {
		delete(r.handles, sessionID)
	}
	return h, ok
}

// Active reports whether the session has a request in flight.
func (r *Registry) Active(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[sessionID]
	return ok
}

// Sessions returns the ids of sessions with a request in flight, sorted.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}
