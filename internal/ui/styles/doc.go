// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for rigrun-chat.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Theme bundles the styles of the chat screen; the CLI uses the
color variables and render helpers directly.

  - Purple: assistant messages
  - Cyan: user messages, active session
  - Amber: sessions that are streaming, notices
  - Rose: errors
*/
package styles
