// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// PARSE BLOCK TESTS
// =============================================================================

func TestParseBlock(t *testing.T) {
	tests := []struct {
		name   string
		block  string
		want   Event
		wantOK bool
	}{
		{
			name:   "typed event",
			block:  "event: delta\ndata: {\"content\":\"hi\"}",
			want:   Event{Type: TypeDelta, Data: `{"content":"hi"}`},
			wantOK: true,
		},
		{
			name:   "default type",
			block:  "data: hello",
			want:   Event{Type: TypeMessage, Data: "hello"},
			wantOK: true,
		},
		{
			name:   "fragments concatenated",
			block:  "event:delta\r\ndata: {\"a\":\r\ndata: 1}",
			want:   Event{Type: TypeDelta, Data: `{"a":1}`},
			wantOK: true,
		},
		{
			name:   "no data line",
			block:  "event: ping",
			wantOK: false,
		},
		{
			name:   "empty data",
			block:  "event: done\ndata:",
			wantOK: false,
		},
		{
			name:   "comments and ids ignored",
			block:  ": keepalive\nid: 7\nevent: error\ndata: rate limited",
			want:   Event{Type: TypeError, Data: "rate limited"},
			wantOK: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseBlock(tc.block)
			if ok != tc.wantOK {
				t.Fatalf("ParseBlock() ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Errorf("ParseBlock() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestEvent_IsTerminal(t *testing.T) {
	if !Done().IsTerminal() {
		t.Error("done should be terminal")
	}
	if !(Event{Type: TypeError}).IsTerminal() {
		t.Error("error should be terminal")
	}
	if (Event{Type: TypeDelta}).IsTerminal() {
		t.Error("delta should not be terminal")
	}
}

// =============================================================================
// SPLITTER TESTS
// =============================================================================

func TestSplitter_KeepsIncompleteTail(t *testing.T) {
	var s Splitter

	blocks, err := s.Write([]byte("data: a\r\n\r\ndata: b\r"))
	require.NoError(t, err)
	require.Equal(t, []string{"data: a"}, blocks)
	require.Equal(t, len("data: b\r"), s.Buffered())

	blocks, err = s.Write([]byte("\n\r\ndata: c"))
	require.NoError(t, err)
	require.Equal(t, []string{"data: b"}, blocks)

	require.Equal(t, "data: c", s.Flush())
	require.Equal(t, 0, s.Buffered())
}

func TestSplitter_BlockTooLarge(t *testing.T) {
	var s Splitter
	_, err := s.Write([]byte(strings.Repeat("x", MaxBlockSize+1)))
	if !errors.Is(err, ErrBlockTooLarge) {
		t.Fatalf("expected ErrBlockTooLarge, got %v", err)
	}
}

// =============================================================================
// READER TESTS
// =============================================================================

func readAll(t *testing.T, r io.Reader) []Event {
	t.Helper()
	reader := NewReader(r)
	var events []Event
	for {
		ev, err := reader.ReadEvent()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestReader_ChunkBoundaries(t *testing.T) {
	stream := "event: delta\r\ndata: {\"content\":\"你好\"}\r\n\r\n" +
		"event: reasoning\r\ndata: {\"content\":\"think\"}\r\n\r\n" +
		"event: ping\r\n\r\n" +
		"event: delta\r\ndata: {\"content\":\"!\"}\r\n\r\n"

	want := []Event{
		{Type: TypeDelta, Data: `{"content":"你好"}`},
		{Type: TypeReasoning, Data: `{"content":"think"}`},
		{Type: TypeDelta, Data: `{"content":"!"}`},
	}

	// One byte at a time splits both delimiters and multi-byte runes
	require.Equal(t, want, readAll(t, iotest.OneByteReader(strings.NewReader(stream))))
	require.Equal(t, want, readAll(t, iotest.HalfReader(strings.NewReader(stream))))
	require.Equal(t, want, readAll(t, strings.NewReader(stream)))
}

func TestReader_TrailingBlockWithoutDelimiter(t *testing.T) {
	events := readAll(t, strings.NewReader("data: one\r\n\r\nevent: delta\r\ndata: two"))
	require.Equal(t, []Event{
		{Type: TypeMessage, Data: "one"},
		{Type: TypeDelta, Data: "two"},
	}, events)
}

func TestReader_PropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewReader(io.MultiReader(strings.NewReader("data: a\r\n\r\n"), iotest.ErrReader(boom)))

	ev, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "a", ev.Data)

	_, err = r.ReadEvent()
	require.ErrorIs(t, err, boom)
}
