// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// RequestParams are the per-call options of a chat request. They are supplied
// fresh for every send and never stored by the session coordinator.
type RequestParams struct {
	SessionID      string   `json:"session_id"`
	SchoolID       string   `json:"school_id,omitempty"`
	Type           string   `json:"type,omitempty"`
	AppID          string   `json:"app_id,omitempty"`
	ChatType       *int     `json:"chat_type,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	Tools          []string `json:"tools,omitempty"`
	FileIDs        []string `json:"file_ids,omitempty"`
	HistoryEnabled bool     `json:"history_enabled"`
}

// WithSession returns a copy of p bound to another session.
func (p RequestParams) WithSession(sessionID string) RequestParams {
	p.SessionID = sessionID
	if p.Tools != nil {
		p.Tools = append([]string(nil), p.Tools...)
	}
	if p.FileIDs != nil {
		p.FileIDs = append([]string(nil), p.FileIDs...)
	}
	return p
}

// IntPtr is a small helper for optional integer fields such as ChatType.
func IntPtr(v int) *int {
	return &v
}
