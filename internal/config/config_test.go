// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RIGCHAT_BASE_URL", "RIGCHAT_TOKEN", "RIGCHAT_MODEL",
		"RIGCHAT_PROVIDER", "RIGCHAT_LOG_LEVEL", "RIGCHAT_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if !cfg.Chat.HistoryEnabled {
		t.Error("history should be enabled by default")
	}
}

func TestLoadFromPath_TOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[backend]
base_url = "https://chat.example.com/"
requests_per_second = 2.5
burst = 3

[chat]
model = "deepseek-r1"
provider = "openai"
school_id = "9"
chat_type = 2
tools = ["search"]
history_enabled = false
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "https://chat.example.com", cfg.Backend.BaseURL, "trailing slash is trimmed")
	require.Equal(t, 30, cfg.Backend.RequestTimeoutSecs, "missing values take defaults")
	require.Equal(t, 2.5, cfg.Backend.RequestsPerSecond)
	require.Equal(t, "deepseek-r1", cfg.Chat.Model)
	require.Equal(t, "conversation", cfg.Chat.Type)
	require.False(t, cfg.Chat.HistoryEnabled)

	p := cfg.Chat.Params("s1")
	require.Equal(t, "s1", p.SessionID)
	require.Equal(t, "9", p.SchoolID)
	require.NotNil(t, p.ChatType)
	require.Equal(t, 2, *p.ChatType)
	require.Equal(t, []string{"search"}, p.Tools)

	p.Tools[0] = "changed"
	require.Equal(t, "search", cfg.Chat.Tools[0], "params do not share the tools slice")
}

func TestLoadFromPath_JSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"chat": {"model": "m-json"}}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "m-json", cfg.Chat.Model)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[backend]
base_url = "ftp://nope"
request_timeout_secs = 9999

[logging]
level = "loud"

[ui]
markdown_style = "neon"
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	require.ElementsMatch(t, []string{"backend.base_url", "backend.request_timeout_secs", "logging.level", "ui.markdown_style"}, fields)
}

func TestLoadFromPath_FixesPermissions(t *testing.T) {
	if os.PathSeparator != '/' {
		t.Skip("permission bits are not meaningful on this platform")
	}
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = \"1\"\n"), 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestReadFile_NoEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RIGCHAT_MODEL", "from-env")

	cfg, err := ReadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().Chat.Model, cfg.Chat.Model)

	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[chat]\nmodel = \"from-file\"\n")
	cfg, err = ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Chat.Model)
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RIGCHAT_BASE_URL", "https://env.example.com")
	t.Setenv("RIGCHAT_TOKEN", "secret-token")
	t.Setenv("RIGCHAT_MODEL", "env-model")
	t.Setenv("RIGCHAT_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	require.Equal(t, "https://env.example.com", cfg.Backend.BaseURL)
	require.Equal(t, "secret-token", cfg.Auth.Token)
	require.Equal(t, "env-model", cfg.Chat.Model)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "RIGCHAT_MODEL=from-dotenv\nRIGCHAT_PROVIDER=from-dotenv\n")
	t.Setenv("RIGCHAT_PROVIDER", "from-shell")
	t.Cleanup(func() { os.Unsetenv("RIGCHAT_MODEL") })
	os.Unsetenv("RIGCHAT_MODEL")

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "from-dotenv", os.Getenv("RIGCHAT_MODEL"))
	require.Equal(t, "from-shell", os.Getenv("RIGCHAT_PROVIDER"), "existing variables win")

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.SetDefaults()
	cfg.Chat.Model = "saved-model"
	cfg.Chat.Tools = []string{"a", "b"}
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "# rigrun-chat configuration file"))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "saved-model", loaded.Chat.Model)
	require.Equal(t, []string{"a", "b"}, loaded.Chat.Tools)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	tests := []struct {
		key   string
		value string
		want  interface{}
	}{
		{"chat.model", "m2", "m2"},
		{"backend.base_url", "https://x.example.com", "https://x.example.com"},
		{"backend.request_timeout_secs", "45", 45},
		{"backend.requests_per_second", "1.5", 1.5},
		{"chat.history_enabled", "false", false},
		{"ui.show_reasoning", "yes", true},
		{"chat.tools", "search, code ,", []string{"search", "code"}},
		{"chat.school_id", "12", "12"},
		{"ui.markdown_style", "notty", "notty"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			require.NoError(t, cfg.Set(tc.key, tc.value))
			got, err := cfg.Get(tc.key)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	require.Error(t, cfg.Set("chat.nope", "x"))
	require.Error(t, cfg.Set("chat.model.deeper", "x"))
	require.Error(t, cfg.Set("backend.burst", "many"))
	_, err := cfg.Get("")
	require.Error(t, err)
}

func TestUIConfig_Glamour(t *testing.T) {
	require.Equal(t, "auto", Default().UI.Glamour())
	require.Equal(t, "", UIConfig{MarkdownStyle: "none"}.Glamour())
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q): %v", key, err)
		}
	}
}

func TestString_RedactsToken(t *testing.T) {
	cfg := Default()
	cfg.Auth.Token = "super-secret"

	s := cfg.String()
	require.NotContains(t, s, "super-secret")
	require.Contains(t, s, "[REDACTED]")
	require.Equal(t, "super-secret", cfg.Auth.Token, "String must not modify the config")
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
		_, err := ParseLevel(name)
		require.NoError(t, err, name)
	}
	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, -4)
	logger.Info("hello", "session", "s1")

	require.Contains(t, stderr.String(), "hello")
	require.Contains(t, file.String(), `"msg":"hello"`)
	require.Contains(t, file.String(), `"session":"s1"`)
}

func TestSetupFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chat.log")
	logger, closeLog := SetupFileLogger(path, 0)
	logger.Info("written")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "written")
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[chat]\nmodel = \"first\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	}))

	writeFile(t, path, "[chat]\nmodel = \"second\"\n")

	select {
	case cfg := <-changes:
		require.Equal(t, "second", cfg.Chat.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the file changed")
	}
}
