// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"strings"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Recognized event types. Anything else is passed through and ignored by
// consumers.
const (
	TypeStart     = "start"
	TypeDelta     = "delta"
	TypeReasoning = "reasoning"
	TypeMessageID = "message_id"
	TypeDone      = "done"
	TypeError     = "error"

	// TypeMessage is used when a block has no "event:" line.
	TypeMessage = "message"
)

// Delimiter separates two events on the wire.
const Delimiter = "\r\n\r\n"

// Event is one parsed SSE block. Data is never decoded here.
type Event struct {
	Type string
	Data string
}

// Done returns the synthetic terminal event emitted at end of stream.
func Done() Event {
	return Event{Type: TypeDone}
}

// IsTerminal reports whether the event ends a stream.
func (e Event) IsTerminal() bool {
	return e.Type == TypeDone || e.Type == TypeError
}

// =============================================================================
// BLOCK PARSING
// =============================================================================

// ParseBlock parses one delimited block. Lines are trimmed and empty lines
// skipped; "event:" sets the type and "data:" fragments are concatenated.
// A block whose data is empty yields ok == false.
func ParseBlock(block string) (ev Event, ok bool) {
	ev.Type = TypeMessage

	var data strings.Builder
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			ev.Type = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(line[len("data:"):]))
		}
		// Other fields (id:, retry:, comments) are ignored
	}

	if data.Len() == 0 {
		return Event{}, false
	}
	ev.Data = data.String()
	return ev, true
}
