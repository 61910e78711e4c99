// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the chat backend.
//
// It covers three surfaces of the same server:
//
//   - The streaming chat endpoint (POST /api/v1/chat/ask), read as SSE
//   - The session history service (list, create, rename, delete, history)
//   - The token endpoints (refresh, anonymous login)
//
// The streaming call never retries or reconnects. A request that fails is
// reported once and the caller decides what the user sees.
//
// # Key Types
//
//   - Client: Shared client for all endpoints
//   - HTTPError: Non-2xx response (wraps ErrNetwork)
//   - APIError: Envelope reporting failure in an otherwise valid response
//   - User: Login record returned by the token endpoints
//
// # Usage
//
//	client := backend.NewClient("https://chat.example.com").
//	    WithRateLimit(2, 4)
//
//	err := client.SendRequest(ctx, params, token, messages, func(ev sse.Event) {
//	    fmt.Println(ev.Type, ev.Data)
//	})
package backend
