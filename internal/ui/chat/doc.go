// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat screen.
//
// The screen shows one session at a time with tabs for the others. Sending,
// aborting and streaming are delegated to a session.Coordinator; the model
// only re-renders when the coordinator reports that a session changed, so
// sessions in the background keep streaming while another one is shown.
//
// # Key Bindings
//
//	Enter       send the input to the current session
//	Esc         abort the current session's stream
//	Tab         next session (shift+tab: previous)
//	Ctrl+N      new session
//	Ctrl+R      reload the session list
//	PgUp/PgDn   scroll
//	F1          toggle help
//	Ctrl+C      quit
package chat
