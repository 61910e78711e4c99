// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/sse"
)

// DefaultErrorContent replaces the message content when an error event
// carries no text.
const DefaultErrorContent = "SSE request failed"

// =============================================================================
// EFFECTS
// =============================================================================

// Effect tells the caller what a reduction requires.
type Effect int

const (
	// EffectNone means the state did not change.
	EffectNone Effect = iota

	// EffectUpdate means the message changed and must be written back.
	EffectUpdate

	// EffectDone means the stream completed; the message is final.
	EffectDone

	// EffectError means the backend reported an error; the message is final.
	EffectError
)

// String returns the effect name.
func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectUpdate:
		return "update"
	case EffectDone:
		return "done"
	case EffectError:
		return "error"
	default:
		return fmt.Sprintf("effect(%d)", int(e))
	}
}

// IsTerminal reports whether the effect ends the request.
func (e Effect) IsTerminal() bool {
	return e == EffectDone || e == EffectError
}

// =============================================================================
// STATE
// =============================================================================

// State is the accumulator for one in-flight assistant message.
type State struct {
	Message model.Message
	Final   bool

	// Deltas counts applied content and reasoning events.
	Deltas int
}

// NewState seeds an accumulator with an empty assistant placeholder and a
// fresh id.
func NewState(sessionID string) State {
	return FromMessage(model.NewAssistantPlaceholder(sessionID))
}

// FromMessage seeds an accumulator with an existing placeholder, keeping
// its id.
func FromMessage(msg model.Message) State {
	return State{Message: msg.Clone()}
}

// DecodeError reports an event whose payload could not be decoded. The
// event is dropped and the state is unchanged.
type DecodeError struct {
	Type string
	Data string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed %s event: %v", e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// textPayload is the body of delta and reasoning events.
type textPayload struct {
	Model   string  `json:"model"`
	Content *string `json:"content"`
}

// idPayload is the body of message_id events.
type idPayload struct {
	QuestionID model.FlexString `json:"question_id"`
	AnswerID   model.FlexString `json:"answer_id"`
}

// =============================================================================
// REDUCER
// =============================================================================

// Reduce applies one event to the state. It never mutates its input.
//
// Every delta or reasoning event sets the model to its model field, which
// is empty when the field is absent.
func Reduce(st State, ev sse.Event) (State, Effect, error) {
	if st.Final {
		return st, EffectNone, nil
	}

	next := st
	next.Message = st.Message.Clone()
	msg := &next.Message

	switch ev.Type {
	case sse.TypeStart:
		next = State{Message: model.Message{
			ID:        st.Message.ID,
			SessionID: st.Message.SessionID,
			Role:      model.RoleAssistant,
		}}
		return next, EffectUpdate, nil

	case sse.TypeDelta, sse.TypeReasoning:
		var p textPayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			return st, EffectNone, &DecodeError{Type: ev.Type, Data: ev.Data, Err: err}
		}
		msg.Model = p.Model
		if p.Content != nil {
			if ev.Type == sse.TypeDelta {
				msg.Content += *p.Content
			} else {
				msg.ReasoningContent += *p.Content
			}
		}
		next.Deltas++
		return next, EffectUpdate, nil

	case sse.TypeMessageID:
		var p idPayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			return st, EffectNone, &DecodeError{Type: ev.Type, Data: ev.Data, Err: err}
		}
		msg.QuestionID = p.QuestionID.String()
		msg.AnswerID = p.AnswerID.String()
		return next, EffectUpdate, nil

	case sse.TypeDone:
		next.Final = true
		return next, EffectDone, nil

	case sse.TypeError:
		msg.Content = ev.Data
		if msg.Content == "" {
			msg.Content = DefaultErrorContent
		}
		next.Final = true
		return next, EffectError, nil

	default:
		return st, EffectNone, nil
	}
}

// ReduceAll folds a slice of events, skipping events that fail to decode.
// It returns the final state and the decode errors encountered.
func ReduceAll(st State, events []sse.Event) (State, []error) {
	var errs []error
	for _, ev := range events {
		var err error
		st, _, err = Reduce(st, ev)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return st, errs
}
