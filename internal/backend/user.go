// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// Token endpoints.
const (
	refreshPath   = "/api/v1/token/refresh"
	anonymousPath = "/api/v1/anonymous/create"
)

// User types reported by the backend.
const (
	UserAnonymous = 0
	UserRegular   = 1
	UserPremium   = 2
)

// User is the login record kept by the client.
type User struct {
	UserID       model.FlexString `json:"user_id"`
	Token        string           `json:"token"`
	RefreshToken string           `json:"refresh_token"`
	// ExpiresIn is an absolute unix timestamp in seconds, despite the name.
	ExpiresIn   int64  `json:"expires_in"`
	Type        int    `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	SchoolID    string `json:"school_id,omitempty"`
}

// IsAnonymous reports whether the user was created by anonymous login.
func (u User) IsAnonymous() bool {
	return u.Type == UserAnonymous
}

// RefreshToken exchanges the user's refresh token for a new access token.
// Fields returned by the backend are merged over the current user; fields it
// omits are kept.
func (c *Client) RefreshToken(ctx context.Context, user User) (User, error) {
	env, err := c.call(ctx, http.MethodPost, refreshPath, nil, user.RefreshToken, nil)
	if err != nil {
		return User{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	if !env.OK || len(env.Data) == 0 {
		return User{}, &APIError{Op: "refresh token", Code: env.Code, Msg: env.Msg}
	}

	merged := user
	if err := json.Unmarshal(env.Data, &merged); err != nil {
		return User{}, fmt.Errorf("%w: refresh token: %v", ErrUnexpectedResponse, err)
	}
	return merged, nil
}

// AnonymousLogin creates an anonymous user.
func (c *Client) AnonymousLogin(ctx context.Context) (User, error) {
	env, err := c.call(ctx, http.MethodGet, anonymousPath, nil, "", nil)
	if err != nil {
		return User{}, fmt.Errorf("anonymous login failed: %w", err)
	}
	if !env.OK || len(env.Data) == 0 {
		return User{}, &APIError{Op: "anonymous login", Code: env.Code, Msg: env.Msg}
	}

	var user User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return User{}, fmt.Errorf("%w: anonymous login: %v", ErrUnexpectedResponse, err)
	}
	user.Type = UserAnonymous
	return user, nil
}
