// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

func msg(id, content string) model.Message {
	return model.Message{ID: id, SessionID: "s1", Role: model.RoleAssistant, Content: content}
}

// =============================================================================
// BASIC OPERATIONS
// =============================================================================

func TestEnsureAndHas(t *testing.T) {
	s := New()
	require.False(t, s.Has("s1"))
	require.True(t, s.Ensure("s1"))
	require.False(t, s.Ensure("s1"), "second Ensure must not recreate")
	require.True(t, s.Has("s1"))
	require.Empty(t, s.Messages("s1"))
	require.NotNil(t, s.Messages("s1"))
	require.Nil(t, s.Messages("unknown"))
}

func TestAppend_AllOrNothing(t *testing.T) {
	s := New()
	require.NoError(t, s.Append("s1", msg("a", "1"), msg("b", "2")))

	err := s.Append("s1", msg("c", "3"), msg("a", "dup"))
	require.ErrorIs(t, err, ErrDuplicateID)
	require.Equal(t, 2, s.Len("s1"), "a failed append must add nothing")
}

func TestAppend_SingleNotification(t *testing.T) {
	s := New()
	var calls atomic.Int32
	s.Listen(func(string) { calls.Add(1) })

	require.NoError(t, s.Append("s1", msg("u", "hi"), msg("p", "")))
	require.Equal(t, int32(1), calls.Load())
}

func TestUpsert_ReplacesByID(t *testing.T) {
	s := New()
	require.NoError(t, s.Append("s1", msg("u", "q"), msg("p", "")))
	require.NoError(t, s.Append("s1", msg("later", "x")))

	require.NoError(t, s.Upsert("s1", msg("p", "answer")))

	got := s.Messages("s1")
	require.Len(t, got, 3)
	require.Equal(t, "answer", got[1].Content, "placeholder is updated in place, not the tail")
	require.Equal(t, "x", got[2].Content)

	require.NoError(t, s.Upsert("s1", msg("new", "n")))
	require.Equal(t, 4, s.Len("s1"))
}

func TestReplaceLast(t *testing.T) {
	s := New()
	require.ErrorIs(t, s.ReplaceLast("s1", msg("a", "")), ErrNotFound)

	s.Ensure("s1")
	require.ErrorIs(t, s.ReplaceLast("s1", msg("a", "")), ErrEmpty)

	require.NoError(t, s.Append("s1", msg("a", "1"), msg("b", "2")))
	require.NoError(t, s.ReplaceLast("s1", msg("b", "22")))
	require.ErrorIs(t, s.ReplaceLast("s1", msg("a", "x")), ErrDuplicateID)

	got, ok := s.Get("s1", "b")
	require.True(t, ok)
	require.Equal(t, "22", got.Content)
}

func TestReplace_FreezesHistory(t *testing.T) {
	s := New()
	require.NoError(t, s.Append("s1", msg("old", "x")))

	s.Replace("s1", []model.Message{msg("h1", "a"), msg("h2", "b")})

	got := s.Messages("s1")
	require.Len(t, got, 2)
	require.Equal(t, "h1", got[0].ID)
	_, ok := s.Get("s1", "old")
	require.False(t, ok)
	require.True(t, s.IsFrozen("s1", "h2"))
	require.ErrorIs(t, s.Upsert("s1", msg("h2", "edited")), ErrFrozen)
}

func TestLoad_OnlyWhenAbsent(t *testing.T) {
	s := New()
	require.True(t, s.Load("s1", []model.Message{msg("h1", "a")}))
	require.True(t, s.IsFrozen("s1", "h1"))

	require.False(t, s.Load("s1", []model.Message{msg("h2", "b")}))
	got := s.Messages("s1")
	require.Len(t, got, 1)
	require.Equal(t, "h1", got[0].ID)
}

// =============================================================================
// FREEZE
// =============================================================================

func TestFreeze_RejectsLaterWrites(t *testing.T) {
	s := New()
	require.NoError(t, s.Append("s1", msg("p", "final")))
	require.NoError(t, s.Freeze("s1", "p"))

	err := s.Upsert("s1", msg("p", "late"))
	require.True(t, errors.Is(err, ErrFrozen))
	require.ErrorIs(t, s.ReplaceLast("s1", msg("p", "late")), ErrFrozen)

	got, _ := s.Get("s1", "p")
	require.Equal(t, "final", got.Content)
}

func TestFreeze_Unknown(t *testing.T) {
	s := New()
	require.ErrorIs(t, s.Freeze("nope", "p"), ErrNotFound)
	s.Ensure("s1")
	require.ErrorIs(t, s.Freeze("s1", "p"), ErrNotFound)
}

// =============================================================================
// ISOLATION AND COPIES
// =============================================================================

func TestMessages_ReturnsCopies(t *testing.T) {
	s := New()
	m := msg("a", "x")
	m.Citations = []string{"c"}
	require.NoError(t, s.Append("s1", m))

	got := s.Messages("s1")
	got[0].Content = "mutated"
	got[0].Citations[0] = "mutated"

	again := s.Messages("s1")
	require.Equal(t, "x", again[0].Content)
	require.Equal(t, "c", again[0].Citations[0])
}

func TestDeleteAndSessions(t *testing.T) {
	s := New()
	s.Ensure("b")
	s.Ensure("a")
	require.Equal(t, []string{"a", "b"}, s.Sessions())

	s.Delete("a")
	require.Equal(t, []string{"b"}, s.Sessions())
	require.False(t, s.Has("a"))
}

func TestListen_Unsubscribe(t *testing.T) {
	s := New()
	var got []string
	var mu sync.Mutex
	stop := s.Listen(func(id string) {
		mu.Lock()
		got = append(got, id)
		mu.Unlock()
	})

	s.Ensure("s1")
	stop()
	s.Ensure("s2")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"s1"}, got)
}

func TestConcurrentSessionsStayIsolated(t *testing.T) {
	s := New()
	const sessions = 8
	const writes = 200

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("s%d", i)
		require.NoError(t, s.Append(id, model.Message{ID: "u", SessionID: id}, model.Message{ID: "p", SessionID: id}))

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			content := ""
			for j := 0; j < writes; j++ {
				content += "x"
				s.Upsert(id, model.Message{ID: "p", SessionID: id, Content: content})
				_ = s.Messages(id)
			}
		}(id)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("s%d", i)
		got := s.Messages(id)
		require.Len(t, got, 2)
		require.Len(t, got[1].Content, writes)
		require.Equal(t, id, got[1].SessionID)
	}
}
