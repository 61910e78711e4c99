// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-chat command line.
//
// # Commands
//
//   - chat: interactive REPL with slash commands and per-session streaming
//   - ask: one-shot question, answer streamed to stdout
//   - tui: full screen Bubble Tea client with one tab per session
//   - sessions: list, create, rename and delete backend sessions
//   - history: print a session's transcript
//   - login, logout: anonymous login and stored credentials
//   - config: show, get, set and locate the configuration file
//
// Every command shares one app value holding the loaded configuration, the
// backend client, the token source and the session coordinator.
package cli
