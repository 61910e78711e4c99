// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ui/markdown"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

type askOptions struct {
	sessionID string
	name      string
	reasoning bool
	markdown  bool
}

func newAskCmd(a *app) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Long: `Ask a single question and stream the answer to stdout.

Without --session a new session is created, named after the question.
Ctrl+C stops the answer; what arrived so far is kept.

Examples:
  rigrun-chat ask "What is the capital of France?"
  rigrun-chat ask --session 42 "And of Spain?"
  rigrun-chat ask --reasoning "Prove that sqrt(2) is irrational" 2>thoughts.txt
  echo "Summarize this" | rigrun-chat ask -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.sessionID, "session", "s", "", "send to an existing session")
	cmd.Flags().StringVar(&opts.name, "name", "", "name of the new session (default: the question)")
	cmd.Flags().BoolVarP(&opts.reasoning, "reasoning", "r", false, "write the reasoning trace to stderr")
	cmd.Flags().BoolVarP(&opts.markdown, "markdown", "m", false, "render the finished answer as markdown instead of streaming it")
	return cmd
}

func (a *app) runAsk(ctx context.Context, opts *askOptions, args []string) error {
	question, err := a.readQuestion(args)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID := opts.sessionID
	if sessionID == "" {
		token, err := a.token(ctx)
		if err != nil {
			return err
		}
		name := opts.name
		if name == "" {
			name = util.TruncateRunes(util.FirstLine(question), 30)
		}
		info, err := sessionService{a}.CreateSession(ctx, token, name)
		if err != nil {
			return err
		}
		sessionID = info.Key
		a.logger.Debug("created session", "session", sessionID, "name", name)
	}

	sub := a.coord.Subscribe()
	defer sub.Close()

	req, err := a.coord.Send(ctx, a.params(sessionID), model.NewUserChatMessage(sessionID, question))
	if err != nil {
		return err
	}

	render := opts.markdown && isTerminalWriter(a.stdout) && a.config().UI.Glamour() != ""
	var reasoning io.Writer
	if opts.reasoning {
		reasoning = a.stderr
	}
	var printer *streamPrinter
	if !render {
		printer = newStreamPrinter(a.stdout, reasoning)
	}

	final, err := follow(ctx, a.coord, sub, req, printer)
	if render {
		if opts.reasoning && final.HasReasoning() {
			fmt.Fprintln(a.stderr, ReasoningStyle.Render(final.ReasoningContent))
		}
		fmt.Fprintln(a.stdout, a.renderMarkdown(final.Content))
	} else {
		fmt.Fprintln(a.stdout)
	}

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(a.stderr, WarningStyle.Render("[Stopped]"))
		return nil
	case err != nil:
		return err
	}
	if opts.sessionID == "" {
		fmt.Fprintln(a.stderr, DimStyle.Render("session: "+sessionID))
	}
	return nil
}

// readQuestion joins the arguments; a lone "-" reads stdin.
func (a *app) readQuestion(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		args = []string{string(data)}
	}
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return "", errors.New("question is empty")
	}
	return question, nil
}

// renderMarkdown renders a finished reply for the terminal. Rendering
// failures fall back to the plain text.
func (a *app) renderMarkdown(content string) string {
	md, err := markdown.New(terminalWidth(a.stdout)-4, a.config().UI.Glamour())
	if err != nil {
		a.logger.Debug("markdown rendering disabled", "error", err)
		return content
	}
	return md.Render(content)
}
