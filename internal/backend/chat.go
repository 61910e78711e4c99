// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/sse"
)

// ChatPath is the streaming chat endpoint.
const ChatPath = "/api/v1/chat/ask"

// EventHandler receives each event of a stream, in arrival order.
type EventHandler = func(ev sse.Event)

// askRequest is the body of the chat endpoint: the request parameters
// merged with the messages and the stream flag.
type askRequest struct {
	model.RequestParams
	Messages []model.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// SendRequest opens one streaming chat request and calls onEvent for every
// parsed event. When the body ends, onEvent receives one synthetic done
// event. There is no retry.
//
// Cancelling ctx is the abort signal: no event is delivered after it fires,
// no done is synthesized, and the context error is returned.
//
// A non-2xx response or a missing body returns an error wrapping ErrNetwork
// without delivering any event.
func (c *Client) SendRequest(ctx context.Context, params model.RequestParams, token string, messages []model.ChatMessage, onEvent EventHandler) error {
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	bodyBytes, err := json.Marshal(askRequest{
		RequestParams: params,
		Messages:      messages,
		Stream:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(ChatPath, nil), bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("request aborted: %w", ctxErr)
		}
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	c.logResponse(req, resp.StatusCode, time.Since(start))

	if !isOK(resp.StatusCode) {
		return handleErrorResponse(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return ErrNetwork
	}

	return c.processStream(ctx, resp.Body, onEvent)
}

// processStream reads events until the body ends or ctx is cancelled.
func (c *Client) processStream(ctx context.Context, body io.Reader, onEvent EventHandler) error {
	reader := sse.NewReader(body)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stream aborted: %w", err)
		}

		ev, err := reader.ReadEvent()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("stream aborted: %w", ctxErr)
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		// The signal may have fired while the read was blocked
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stream aborted: %w", err)
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("stream aborted: %w", err)
	}
	if onEvent != nil {
		onEvent(sse.Done())
	}
	return nil
}
