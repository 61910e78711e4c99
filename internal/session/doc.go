// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates streaming chat requests across sessions.
//
// The Coordinator is what front ends talk to. It checks preconditions,
// appends the user message and an assistant placeholder to the session
// store, drives the transport on its own goroutine and writes every
// accumulator update back to the store. Each session has at most one
// stream in flight; streams of different sessions run independently and
// can be aborted independently.
//
// # Key Types
//
//   - Coordinator: Send, abort and observe streams per session
//   - Registry: Session id to cancellation handle mapping
//   - Request: Handle on one in-flight request
//   - PreconditionError: Rejections that happen before any state change
//
// # Usage
//
//	coord := session.NewCoordinator(client, tokens, session.Config{History: client})
//	if !coord.SendMessage(ctx, params, model.NewUserChatMessage(id, "Hello")) {
//	    return
//	}
//	msgs := coord.Messages(id)
//	coord.AbortRequest(id)
//
// # Session States
//
// A session is either idle or loading. Loading is true exactly while a
// cancellation handle is registered for it, from a successful send until
// done, error, abort or a transport failure.
package session
