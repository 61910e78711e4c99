// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// OUTBOUND MESSAGE
// =============================================================================

// ChatMessage is the unit sent to the backend in the "messages" array.
// It is never modified after it has been sent.
type ChatMessage struct {
	SessionID string `json:"session_id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
}

// NewUserChatMessage creates an outbound user message for a session.
func NewUserChatMessage(sessionID, content string) ChatMessage {
	return ChatMessage{SessionID: sessionID, Role: RoleUser, Content: content}
}

// IsBlank reports whether the message carries no visible text.
func (m ChatMessage) IsBlank() bool {
	return strings.TrimSpace(m.Content) == ""
}

// =============================================================================
// DISPLAY MESSAGE
// =============================================================================

// Message is one displayed turn of a session (a "bubble").
//
// ID is assigned client-side when the message is created and never changes.
// QuestionID and AnswerID are server correlation ids attached once the
// backend reports them; they are not keys.
type Message struct {
	ID               string   `json:"id"`
	SessionID        string   `json:"session_id"`
	Role             Role     `json:"role"`
	Content          string   `json:"content"`
	ReasoningContent string   `json:"reasoning_content,omitempty"`
	Model            string   `json:"model,omitempty"`
	Citations        []string `json:"citations,omitempty"`
	QuestionID       string   `json:"question_id,omitempty"`
	AnswerID         string   `json:"answer_id,omitempty"`
}

// NewUserMessage creates a user bubble with a fresh id.
func NewUserMessage(sessionID, content string) Message {
	return Message{
		ID:        NewID(),
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   content,
	}
}

// NewAssistantPlaceholder creates the empty assistant bubble that a stream
// fills in.
func NewAssistantPlaceholder(sessionID string) Message {
	return Message{
		ID:        NewID(),
		SessionID: sessionID,
		Role:      RoleAssistant,
	}
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	if m.Citations != nil {
		m.Citations = append([]string(nil), m.Citations...)
	}
	return m
}

// HasReasoning reports whether the message carries a thought trace.
func (m Message) HasReasoning() bool {
	return m.ReasoningContent != ""
}

// IsEmpty returns true if the message has neither content nor reasoning.
func (m Message) IsEmpty() bool {
	return m.Content == "" && m.ReasoningContent == ""
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// ToChatMessage converts a bubble into its outbound form.
func (m Message) ToChatMessage() ChatMessage {
	return ChatMessage{SessionID: m.SessionID, Role: m.Role, Content: m.Content}
}

// NewID returns a new random message id.
func NewID() string {
	return uuid.NewString()
}
