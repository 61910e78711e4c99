// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies bearer tokens to the chat client.
//
// A Manager keeps the login user in a JSON file, refreshes the access token
// shortly before it expires and can create an anonymous user. Static wraps a
// fixed token, for scripts and tests.
//
// # Usage
//
//	mgr := auth.NewManager(path, client, auth.WithLogger(logger))
//	if err := mgr.Load(); err != nil {
//	    return err
//	}
//	token, err := mgr.Token(ctx)
package auth
