// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// History service endpoints.
const (
	listPath    = "/api/v1/chat/list"
	createPath  = "/api/v1/chat/create"
	renamePath  = "/api/v1/chat/set/name"
	deletePath  = "/api/v1/chat/delete"
	historyPath = "/api/v1/chat/history"

	// codeSuccess is the envelope code the session endpoints use for success.
	codeSuccess = 1

	listLimit    = 100
	historyLimit = 1000
)

// CreateSessionRequest is the body of the create endpoint.
type CreateSessionRequest struct {
	Name     string `json:"name"`
	SchoolID int    `json:"school_id"`
	ChatType int    `json:"chat_type"`
	Type     string `json:"type"`
	AppID    int    `json:"app_id"`
}

// NewCreateSessionRequest returns a request with the backend's defaults.
func NewCreateSessionRequest(name string) CreateSessionRequest {
	return CreateSessionRequest{
		Name:     name,
		SchoolID: 1,
		ChatType: 0,
		Type:     "conversation",
		AppID:    1,
	}
}

type sessionRow struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CreateTime string `json:"create_time"`
}

type historyRow struct {
	ID               model.FlexString `json:"id"`
	Role             string           `json:"role"`
	Content          string           `json:"content"`
	Model            string           `json:"model"`
	Citations        []string         `json:"citations"`
	ReasoningContent string           `json:"reasoning_content"`
}

// timeLayouts are the create_time formats seen from the backend.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// decodeList decodes an envelope's data as an array. A null data field is
// an empty list.
func decodeList[T any](op string, env *envelope) ([]T, error) {
	var rows []T
	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return rows, nil
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnexpectedResponse, op, err)
	}
	return rows, nil
}

// =============================================================================
// SESSION HISTORY SERVICE
// =============================================================================

// ListSessions returns the user's sessions, grouped by creation day.
func (c *Client) ListSessions(ctx context.Context, token string) ([]model.SessionInfo, error) {
	query := url.Values{}
	query.Set("offset", "1")
	query.Set("limit", strconv.Itoa(listLimit))

	env, err := c.call(ctx, http.MethodGet, listPath, query, token, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if env.Code != codeSuccess {
		return nil, &APIError{Op: "list sessions", Code: env.Code, Msg: env.Msg}
	}

	rows, err := decodeList[sessionRow]("list sessions", env)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sessions := make([]model.SessionInfo, 0, len(rows))
	for _, row := range rows {
		created := parseTime(row.CreateTime)
		sessions = append(sessions, model.SessionInfo{
			ID:         row.ID,
			Key:        strconv.FormatInt(row.ID, 10),
			Label:      row.Name,
			Group:      model.GroupFor(created, now),
			CreateTime: created,
		})
	}
	return sessions, nil
}

// CreateSession creates a new session and returns it as a "Today" entry.
func (c *Client) CreateSession(ctx context.Context, token string, req CreateSessionRequest) (model.SessionInfo, error) {
	env, err := c.call(ctx, http.MethodPost, createPath, nil, token, req)
	if err != nil {
		return model.SessionInfo{}, fmt.Errorf("failed to create session: %w", err)
	}
	if env.Code != codeSuccess {
		return model.SessionInfo{}, &APIError{Op: "create session", Code: env.Code, Msg: env.Msg}
	}

	var row sessionRow
	if err := json.Unmarshal(env.Data, &row); err != nil {
		return model.SessionInfo{}, fmt.Errorf("%w: create session: %v", ErrUnexpectedResponse, err)
	}

	return model.SessionInfo{
		ID:         row.ID,
		Key:        strconv.FormatInt(row.ID, 10),
		Label:      row.Name,
		Group:      model.GroupToday,
		CreateTime: time.Now(),
	}, nil
}

// RenameSession sets a session's display name.
func (c *Client) RenameSession(ctx context.Context, token, sessionID, name string) error {
	query := url.Values{}
	query.Set("session_id", sessionID)
	query.Set("name", name)

	env, err := c.call(ctx, http.MethodGet, renamePath, query, token, nil)
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	if env.Code != codeSuccess {
		return &APIError{Op: "rename session", Code: env.Code, Msg: env.Msg}
	}
	return nil
}

// DeleteSession deletes a session on the backend.
func (c *Client) DeleteSession(ctx context.Context, token, sessionID string) error {
	query := url.Values{}
	query.Set("session_id", sessionID)

	env, err := c.call(ctx, http.MethodGet, deletePath, query, token, nil)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if env.Code != codeSuccess {
		return &APIError{Op: "delete session", Code: env.Code, Msg: env.Msg}
	}
	return nil
}

// GetHistory returns the stored transcript of a session. Messages without a
// server id get a fresh client id.
func (c *Client) GetHistory(ctx context.Context, token, sessionID string) ([]model.Message, error) {
	query := url.Values{}
	query.Set("session_id", sessionID)
	query.Set("offset", "1")
	query.Set("limit", strconv.Itoa(historyLimit))

	env, err := c.call(ctx, http.MethodGet, historyPath, query, token, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if !env.OK {
		return nil, &APIError{Op: "get history", Code: env.Code, Msg: env.Msg}
	}

	rows, err := decodeList[historyRow]("get history", env)
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		id := row.ID.String()
		if id == "" {
			id = model.NewID()
		}
		messages = append(messages, model.Message{
			ID:               id,
			SessionID:        sessionID,
			Role:             model.Role(row.Role),
			Content:          row.Content,
			ReasoningContent: row.ReasoningContent,
			Model:            row.Model,
			Citations:        row.Citations,
		})
	}
	return messages, nil
}
