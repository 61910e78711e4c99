// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders finished assistant replies for the terminal.
//
// Replies are rendered with glamour once they are final; text that is still
// streaming is shown as it arrives. Fenced code blocks can be pulled out of
// a reply and highlighted on their own with chroma.
package markdown
