// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/backend"
	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/session"
	"github.com/jeranaias/rigrun-chat/internal/ui/chat"
)

// Version is set at build time.
var Version = "0.1.0"

// annotationLog set to "file" keeps log output off the terminal, for
// commands that own the screen.
const annotationLog = "log"

// app is the state shared by every command.
type app struct {
	// flags
	cfgFile string
	baseURL string
	verbose bool

	mu      sync.RWMutex
	cfg     *config.Config
	cfgPath string

	logger   *slog.Logger
	closeLog func() error
	client   *backend.Client
	auth     *auth.Manager
	tokens   session.TokenSource
	coord    *session.Coordinator

	// rejections collects SendMessage rejections for the tui notice line
	rejections *chat.Rejections

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

// newRootCmd builds the command tree around a fresh app.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "rigrun-chat",
		Short: "Streaming multi-session chat client",
		Long: `rigrun-chat talks to a chat backend that streams answers over
Server-Sent Events. Several sessions can stream at the same time; each
session has at most one answer in flight.

Configuration lives in ~/.rigrun-chat/config.toml. A .env file in the
working directory and RIGCHAT_* variables override it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ~/.rigrun-chat/config.toml)")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "backend base URL (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newAskCmd(a),
		newChatCmd(a),
		newTUICmd(a),
		newSessionsCmd(a),
		newHistoryCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newConfigCmd(a),
	)
	return root
}

// Execute runs the command line and reports errors on stderr.
func Execute() error {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		return err
	}
	return nil
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads the configuration and builds the collaborators.
func (a *app) setup(cmd *cobra.Command) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()
	a.stdin = cmd.InOrStdin()

	cfg, path, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.cfgPath = path

	fileOnly := cmd.Annotations[annotationLog] == "file"
	a.logger, a.closeLog = cfg.Logger(fileOnly)

	a.client = backend.NewClient(cfg.Backend.BaseURL).
		WithTimeout(cfg.RequestTimeout()).
		WithRateLimit(cfg.Backend.RequestsPerSecond, cfg.Backend.Burst).
		WithLogger(a.logger)

	a.auth = auth.NewManager(cfg.Auth.UserFile, a.client, auth.WithLogger(a.logger))
	if err := a.auth.Load(); err != nil {
		a.logger.Warn("ignoring stored user", "path", a.auth.Path(), "error", err)
	}
	if cfg.Auth.Token != "" {
		a.tokens = auth.Static(cfg.Auth.Token)
	} else {
		a.tokens = a.auth
	}

	a.rejections = &chat.Rejections{}
	a.coord = session.NewCoordinator(a.client, a.tokens, session.Config{
		History:        a.client,
		Logger:         a.logger,
		OnPrecondition: a.rejections.Report,
	})
	return nil
}

// loadConfig reads the config file named by --config, or the default one.
func (a *app) loadConfig() (*config.Config, string, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, "", err
	}

	var cfg *config.Config
	var err error
	path := a.cfgFile
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		path, _ = config.ConfigPath()
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, "", err
	}

	if a.baseURL != "" {
		cfg.Backend.BaseURL = strings.TrimRight(a.baseURL, "/")
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, path, nil
}

func (a *app) close() {
	if a.coord != nil {
		a.coord.AbortAll()
	}
	if a.closeLog != nil {
		if err := a.closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}
}

// fileConfig reads the config file as written, for editing.
func (a *app) fileConfig() (*config.Config, error) {
	if a.cfgPath == "" {
		return nil, fmt.Errorf("no config file location")
	}
	return config.ReadFile(a.cfgPath)
}

// config returns the current configuration. It can change while chat or
// tui watch the file.
func (a *app) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// params builds request params for a session from the current [chat]
// section.
func (a *app) params(sessionID string) model.RequestParams {
	cfg := a.config()
	return cfg.Chat.Params(sessionID)
}

// watchConfig applies [chat] and [ui] changes to the running app. The
// backend and auth sections need a restart.
func (a *app) watchConfig(ctx context.Context) {
	if a.cfgPath == "" {
		return
	}
	err := config.Watch(ctx, a.cfgPath, func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Warn("ignoring config change", "path", a.cfgPath, "error", err)
			return
		}
		a.mu.Lock()
		next := a.cfg.Clone()
		next.Chat = cfg.Chat
		next.UI = cfg.UI
		a.cfg = next
		a.mu.Unlock()
		a.logger.Info("config reloaded", "path", a.cfgPath, "model", cfg.Chat.Model)
	})
	if err != nil {
		a.logger.Debug("config watching disabled", "error", err)
	}
}

// token returns a bearer token or a hint on how to get one.
func (a *app) token(ctx context.Context) (string, error) {
	tok, err := a.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w (run 'rigrun-chat login' or set RIGCHAT_TOKEN)", err)
	}
	return tok, nil
}
