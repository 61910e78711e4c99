// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/rigrun-chat/internal/backend"
	"github.com/jeranaias/rigrun-chat/internal/model"
)

// sessionService creates sessions with the [chat] settings of the app.
type sessionService struct {
	a *app
}

// ListSessions returns the backend's session list.
func (s sessionService) ListSessions(ctx context.Context, token string) ([]model.SessionInfo, error) {
	return s.a.client.ListSessions(ctx, token)
}

// CreateSession creates a named session and makes it known to the store.
func (s sessionService) CreateSession(ctx context.Context, token, name string) (model.SessionInfo, error) {
	req := backend.NewCreateSessionRequest(name)
	chat := s.a.config().Chat
	if chat.Type != "" {
		req.Type = chat.Type
	}
	req.ChatType = chat.ChatType

	info, err := s.a.client.CreateSession(ctx, token, req)
	if err != nil {
		return model.SessionInfo{}, fmt.Errorf("failed to create session: %w", err)
	}
	s.a.coord.Store().Ensure(info.Key)
	return info, nil
}
