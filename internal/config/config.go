// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigrun-chat.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigrun-chat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend connection settings
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Chat request defaults, sent as request params with every message
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Login state
	Auth AuthConfig `toml:"auth" json:"auth"`

	Logging LoggingConfig `toml:"logging" json:"logging"`

	UI UIConfig `toml:"ui" json:"ui"`
}

// BackendConfig contains the chat backend connection settings.
type BackendConfig struct {
	// BaseURL is the backend root, e.g. https://chat.example.com
	BaseURL string `toml:"base_url" json:"base_url"`
	// RequestTimeoutSecs bounds the non-streaming calls (session list, history, ...)
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
	// RequestsPerSecond limits how fast requests are issued (0 = unlimited)
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	// Burst is the limiter's bucket size
	Burst int `toml:"burst" json:"burst"`
}

// ChatConfig holds the per-request chat options.
type ChatConfig struct {
	Provider       string   `toml:"provider" json:"provider"`
	Model          string   `toml:"model" json:"model"`
	Type           string   `toml:"type" json:"type"`
	AppID          string   `toml:"app_id" json:"app_id"`
	SchoolID       string   `toml:"school_id" json:"school_id"`
	ChatType       int      `toml:"chat_type" json:"chat_type"`
	Tools          []string `toml:"tools" json:"tools"`
	HistoryEnabled bool     `toml:"history_enabled" json:"history_enabled"`
}

// AuthConfig contains login settings.
type AuthConfig struct {
	// UserFile stores the login user (default ~/.rigrun-chat/user.json)
	UserFile string `toml:"user_file" json:"user_file"`
	// Token is a fixed bearer token; when set, the user file is not used
	Token string `toml:"token" json:"token"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// File receives JSON logs (default ~/.rigrun-chat/rigrun-chat.log)
	File string `toml:"file" json:"file"`
}

// UIConfig contains front end preferences.
type UIConfig struct {
	ShowReasoning bool `toml:"show_reasoning" json:"show_reasoning"`

	// MarkdownStyle is the glamour style for finished replies: auto, dark,
	// light or notty. "none" prints replies as plain text.
	MarkdownStyle string `toml:"markdown_style" json:"markdown_style"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",

		Backend: BackendConfig{
			BaseURL:            "http://localhost:8000",
			RequestTimeoutSecs: 30,
			RequestsPerSecond:  0,
			Burst:              1,
		},

		Chat: ChatConfig{
			Provider:       "",
			Model:          "",
			Type:           "conversation",
			HistoryEnabled: true,
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		UI: UIConfig{
			ShowReasoning: true,
			MarkdownStyle: "auto",
		},
	}
}

// SetDefaults fills in zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaults.Backend.BaseURL
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.RequestTimeoutSecs == 0 {
		c.Backend.RequestTimeoutSecs = defaults.Backend.RequestTimeoutSecs
	}
	if c.Backend.Burst == 0 {
		c.Backend.Burst = defaults.Backend.Burst
	}
	if c.Chat.Type == "" {
		c.Chat.Type = defaults.Chat.Type
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.UI.MarkdownStyle == "" {
		c.UI.MarkdownStyle = defaults.UI.MarkdownStyle
	}
	if c.Auth.UserFile == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Auth.UserFile = filepath.Join(dir, "user.json")
		}
	}
	if c.Logging.File == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Logging.File = filepath.Join(dir, "rigrun-chat.log")
		}
	}
}

// Glamour returns the glamour style name, or "" when markdown rendering is
// turned off.
func (u UIConfig) Glamour() string {
	if u.MarkdownStyle == "none" {
		return ""
	}
	return u.MarkdownStyle
}

// RequestTimeout returns the backend timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSecs) * time.Second
}

// Params returns the request params for a session.
func (c *ChatConfig) Params(sessionID string) model.RequestParams {
	p := model.RequestParams{
		SessionID:      sessionID,
		SchoolID:       c.SchoolID,
		Type:           c.Type,
		AppID:          c.AppID,
		ChatType:       model.IntPtr(c.ChatType),
		Provider:       c.Provider,
		Model:          c.Model,
		HistoryEnabled: c.HistoryEnabled,
	}
	if len(c.Tools) > 0 {
		p.Tools = append([]string(nil), c.Tools...)
	}
	return p
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigrun-chat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-chat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600, since it may hold
// a bearer token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads a .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads the configuration from ~/.rigrun-chat/config.toml, falling back
// to defaults when the file does not exist. A .env file in the working
// directory and RIGCHAT_* variables are applied on top.
func Load() (*Config, error) {
	if err := LoadDotEnv(""); err != nil {
		return nil, err
	}

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are read as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := Default()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return finish(cfg)
}

// ReadFile decodes the file at path over the defaults, without environment
// overrides or validation. A missing file yields the defaults. It is what
// "config set" edits and saves back.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with mode 0600.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# rigrun-chat configuration file\n")
	buf.WriteString("# Generated by rigrun-chat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http or https URL", c.Backend.BaseURL),
		})
	}
	if c.Backend.RequestTimeoutSecs < 1 || c.Backend.RequestTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "backend.request_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Backend.RequestTimeoutSecs),
		})
	}
	if c.Backend.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.requests_per_second",
			Message: "must not be negative",
		})
	}
	if c.Backend.Burst < 1 {
		errs = append(errs, ValidationError{
			Field:   "backend.burst",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Backend.Burst),
		})
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: err.Error(),
		})
	}
	switch c.UI.MarkdownStyle {
	case "auto", "dark", "light", "notty", "none":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.markdown_style",
			Message: fmt.Sprintf("must be one of auto, dark, light, notty, none; got '%s'", c.UI.MarkdownStyle),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGCHAT_BASE_URL: overrides backend.base_url
//   - RIGCHAT_TOKEN: overrides auth.token
//   - RIGCHAT_MODEL: overrides chat.model
//   - RIGCHAT_PROVIDER: overrides chat.provider
//   - RIGCHAT_LOG_LEVEL: overrides logging.level
//   - RIGCHAT_LOG_FILE: overrides logging.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RIGCHAT_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("RIGCHAT_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("RIGCHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("RIGCHAT_PROVIDER"); v != "" {
		c.Chat.Provider = v
	}
	if v := os.Getenv("RIGCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RIGCHAT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "chat.model").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strings.TrimSpace(strVal))
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String && field.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"backend.base_url",
		"backend.request_timeout_secs",
		"backend.requests_per_second",
		"backend.burst",
		"chat.provider",
		"chat.model",
		"chat.type",
		"chat.app_id",
		"chat.school_id",
		"chat.chat_type",
		"chat.tools",
		"chat.history_enabled",
		"auth.user_file",
		"auth.token",
		"logging.level",
		"logging.file",
		"ui.show_reasoning",
		"ui.markdown_style",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Chat.Tools != nil {
		clone.Chat.Tools = append([]string(nil), c.Chat.Tools...)
	}
	return &clone
}

// String returns a JSON representation of the config with the token redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Auth.Token != "" {
		safe.Auth.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
