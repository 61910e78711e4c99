// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sort"
	"sync"
)

// Subscription receives coalesced change notifications. Several changes to
// the same session between two reads are reported once, with the loading
// state at the time of the last change.
type Subscription struct {
	mu      sync.Mutex
	pending map[string]bool
	signal  chan struct{}
	closed  bool
	cancel  func()
}

// Subscribe registers for change notifications. Close the subscription when
// done with it.
func (c *Coordinator) Subscribe() *Subscription {
	s := &Subscription{
		pending: make(map[string]bool),
		signal:  make(chan struct{}, 1),
	}

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = s
	c.subMu.Unlock()

	s.cancel = func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
	return s
}

// publish notifies all subscribers that the session changed.
func (c *Coordinator) publish(sessionID string) {
	loading := c.registry.Active(sessionID)

	c.subMu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subMu.Unlock()

	for _, s := range subs {
		s.push(sessionID, loading)
	}
}

func (s *Subscription) push(sessionID string, loading bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending[sessionID] = loading
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Ready is signalled when updates are pending.
func (s *Subscription) Ready() <-chan struct{} {
	return s.signal
}

// Drain returns the pending updates sorted by session id and clears them.
func (s *Subscription) Drain() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := make([]Update, 0, len(s.pending))
	for id, loading := range s.pending {
		updates = append(updates, Update{SessionID: id, Loading: loading})
	}
	s.pending = make(map[string]bool)

	sort.Slice(updates, func(i, j int) bool {
		return updates[i].SessionID < updates[j].SessionID
	})
	return updates
}

// Next blocks until updates are pending or ctx is done.
func (s *Subscription) Next(ctx context.Context) ([]Update, error) {
	for {
		if updates := s.Drain(); len(updates) > 0 {
			return updates, nil
		}
		select {
		case <-s.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops delivery. Pending updates are discarded.
func (s *Subscription) Close() {
	s.mu.Lock()
	s.closed = true
	s.pending = make(map[string]bool)
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
