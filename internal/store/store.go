// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrFrozen is returned when writing to a message whose stream has ended.
	ErrFrozen = errors.New("message is final")

	// ErrNotFound is returned for an unknown session or message.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when appending a message whose id exists.
	ErrDuplicateID = errors.New("duplicate message id")

	// ErrEmpty is returned by ReplaceLast on an empty transcript.
	ErrEmpty = errors.New("transcript is empty")
)

// =============================================================================
// STORE
// =============================================================================

// Listener is called after every mutation of a session, outside the lock.
type Listener func(sessionID string)

type transcript struct {
	messages []model.Message
	index    map[string]int
	frozen   map[string]bool
}

func newTranscript() *transcript {
	return &transcript{
		index:  make(map[string]int),
		frozen: make(map[string]bool),
	}
}

func (t *transcript) reindex() {
	t.index = make(map[string]int, len(t.messages))
	for i, m := range t.messages {
		t.index[m.ID] = i
	}
}

// Store maps session ids to transcripts.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*transcript

	listenMu  sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sessions:  make(map[string]*transcript),
		listeners: make(map[int]Listener),
	}
}

// Listen registers fn for change notifications. The returned func removes it.
func (s *Store) Listen(fn Listener) func() {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenMu.Lock()
		defer s.listenMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(sessionID string) {
	s.listenMu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenMu.RUnlock()

	for _, fn := range fns {
		fn(sessionID)
	}
}

// Ensure creates an empty transcript for the session if none exists and
// reports whether it did.
func (s *Store) Ensure(sessionID string) bool {
	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		return false
	}
	s.sessions[sessionID] = newTranscript()
	s.mu.Unlock()

	s.notify(sessionID)
	return true
}

// Has reports whether the session has a transcript.
func (s *Store) Has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// Messages returns a copy of the session's transcript. Unknown sessions
// return nil.
func (s *Store) Messages(sessionID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]model.Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// Get returns one message by id.
func (s *Store) Get(sessionID, messageID string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.sessions[sessionID]
	if !ok {
		return model.Message{}, false
	}
	i, ok := t.index[messageID]
	if !ok {
		return model.Message{}, false
	}
	return t.messages[i].Clone(), true
}

// Len returns the number of messages in the session.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.sessions[sessionID]; ok {
		return len(t.messages)
	}
	return 0
}

// Append adds messages to the end of the session's transcript in a single
// update, creating the transcript if needed. Either all messages are added
// or none.
func (s *Store) Append(sessionID string, msgs ...model.Message) error {
	s.mu.Lock()
	t, ok := s.sessions[sessionID]
	if !ok {
		t = newTranscript()
		s.sessions[sessionID] = t
	}

	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if _, exists := t.index[m.ID]; exists || seen[m.ID] {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
		}
		seen[m.ID] = true
	}
	for _, m := range msgs {
		t.index[m.ID] = len(t.messages)
		t.messages = append(t.messages, m.Clone())
	}
	s.mu.Unlock()

	s.notify(sessionID)
	return nil
}

// Upsert replaces the message with the same id, or appends it when the id
// is new. Writing to a frozen message returns ErrFrozen.
func (s *Store) Upsert(sessionID string, msg model.Message) error {
	s.mu.Lock()
	t, ok := s.sessions[sessionID]
	if !ok {
		t = newTranscript()
		s.sessions[sessionID] = t
	}

	if t.frozen[msg.ID] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFrozen, msg.ID)
	}
	if i, exists := t.index[msg.ID]; exists {
		t.messages[i] = msg.Clone()
	} else {
		t.index[msg.ID] = len(t.messages)
		t.messages = append(t.messages, msg.Clone())
	}
	s.mu.Unlock()

	s.notify(sessionID)
	return nil
}

// ReplaceLast overwrites the last message of the session.
func (s *Store) ReplaceLast(sessionID string, msg model.Message) error {
	s.mu.Lock()
	t, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if len(t.messages) == 0 {
		s.mu.Unlock()
		return ErrEmpty
	}

	last := len(t.messages) - 1
	oldID := t.messages[last].ID
	if t.frozen[oldID] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFrozen, oldID)
	}
	if i, exists := t.index[msg.ID]; exists && i != last {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}

	delete(t.index, oldID)
	t.messages[last] = msg.Clone()
	t.index[msg.ID] = last
	s.mu.Unlock()

	s.notify(sessionID)
	return nil
}

// Replace swaps the whole transcript, as done when history is loaded.
// The new messages are final and are frozen.
func (s *Store) Replace(sessionID string, msgs []model.Message) {
	t := newTranscript()
	t.messages = make([]model.Message, len(msgs))
	for i, m := range msgs {
		t.messages[i] = m.Clone()
		t.frozen[m.ID] = true
	}
	t.reindex()

	s.mu.Lock()
	s.sessions[sessionID] = t
	s.mu.Unlock()

	s.notify(sessionID)
}

// Load sets the transcript of a session that has none yet, freezing the
// loaded messages. It reports false and changes nothing if the session
// already has a transcript.
func (s *Store) Load(sessionID string, msgs []model.Message) bool {
	t := newTranscript()
	t.messages = make([]model.Message, len(msgs))
	for i, m := range msgs {
		t.messages[i] = m.Clone()
		t.frozen[m.ID] = true
	}
	t.reindex()

	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		return false
	}
	s.sessions[sessionID] = t
	s.mu.Unlock()

	s.notify(sessionID)
	return true
}

// Freeze makes a message immutable.
func (s *Store) Freeze(sessionID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if _, ok := t.index[messageID]; !ok {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	t.frozen[messageID] = true
	return nil
}

// IsFrozen reports whether a message is final.
func (s *Store) IsFrozen(sessionID, messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.sessions[sessionID]; ok {
		return t.frozen[messageID]
	}
	return false
}

// Delete removes a session's transcript.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		s.notify(sessionID)
	}
}

// Sessions returns the ids of all sessions with a transcript, sorted.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
