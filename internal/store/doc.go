// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the in-memory transcripts of chat sessions.
//
// Each session owns an ordered list of messages indexed by message id.
// Updates are explicit upserts by id rather than positional splices, so a
// stream always rewrites its own placeholder even if other messages were
// appended after it. A message can be frozen once its stream has ended;
// later writes to it fail with ErrFrozen.
//
// Nothing is persisted. Transcripts live for the lifetime of the process
// and are re-fetched from the backend when needed.
//
// # Key Types
//
//   - Store: Session id to transcript mapping, safe for concurrent use
//
// # Usage
//
//	s := store.New()
//	s.Append(sessionID, user, placeholder)
//	s.Upsert(sessionID, updated)
//	s.Freeze(sessionID, updated.ID)
package store
