// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse parses the chat backend's Server-Sent Events framing.
//
// The backend separates events with a blank CRLF line ("\r\n\r\n"). Each
// block carries an optional "event:" line and one or more "data:" lines.
// Data fragments are trimmed and concatenated without separators, and the
// payload is left opaque; callers decide how to decode it.
//
// # Key Types
//
//   - Event: One parsed event (type and raw data)
//   - Splitter: Incremental block splitter that survives chunk boundaries
//   - Reader: Pull-style event reader over an io.Reader
//
// # Usage
//
//	r := sse.NewReader(resp.Body)
//	for {
//	    ev, err := r.ReadEvent()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package sse
