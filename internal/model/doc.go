// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
//
// This package defines the core domain types shared by the transport, the
// stream accumulator, the session store and the front ends.
//
// # Key Types
//
//   - ChatMessage: Outbound message sent to the backend (immutable once sent)
//   - RequestParams: Per-call request options (provider, model, tools, ...)
//   - Message: Displayed turn of a session, filled in while streaming
//   - SessionInfo: One entry of the backend's session list
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
// Create the pair appended when a user sends a message:
//
//	user := model.NewUserMessage(sessionID, "Hello!")
//	reply := model.NewAssistantPlaceholder(sessionID)
package model
