// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigrun-chat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides and validation. The package also builds the process logger and
// can watch the config file for changes.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Backend URL, timeout and request rate
//   - ChatConfig: Request params sent with every message
//   - AuthConfig: Stored login user or fixed token
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGCHAT_*), including those from ./.env
//   - ~/.rigrun-chat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger, closeLog := cfg.Logger(false)
//	defer closeLog()
//	params := cfg.Chat.Params(sessionID)
package config
