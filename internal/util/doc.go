// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chat client.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadWidth, StringWidth: terminal-column aware layout
//   - NormalizeInput: NFC normalization and control-character stripping
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	label := util.TruncateWidth(session.Label, 24)
//	text := util.NormalizeInput(line)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
