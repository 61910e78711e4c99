// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

const labelWidth = 40

func newSessionsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage backend sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listSessions(cmd.Context(), asJSON)
		},
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions grouped by creation day",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listSessions(cmd.Context(), asJSON)
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			token, err := a.token(ctx)
			if err != nil {
				return err
			}
			info, err := sessionService{a}.CreateSession(ctx, token, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.stdout, info)
			}
			fmt.Fprintln(a.stdout, info.Key)
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			token, err := a.token(ctx)
			if err != nil {
				return err
			}
			if err := a.client.RenameSession(ctx, token, args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(a.stderr, SuccessStyle.Render("Renamed "+args[0]))
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete sessions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			token, err := a.token(ctx)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := a.client.DeleteSession(ctx, token, id); err != nil {
					return fmt.Errorf("session %s: %w", id, err)
				}
				a.coord.Forget(id)
				fmt.Fprintln(a.stderr, SuccessStyle.Render("Deleted "+id))
			}
			return nil
		},
	}

	cmd.AddCommand(list, create, rename, del)
	return cmd
}

func (a *app) listSessions(ctx context.Context, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	token, err := a.token(ctx)
	if err != nil {
		return err
	}
	sessions, err := a.client.ListSessions(ctx, token)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(a.stdout, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.stdout, DimStyle.Render("No sessions yet. Start one with: rigrun-chat ask \"...\""))
		return nil
	}
	printSessions(a.stdout, sessions, "", nil)
	return nil
}

// printSessions prints sessions under their day group headers, numbered
// for /switch. The current session is marked with >, answering ones
// with *.
func printSessions(w io.Writer, sessions []model.SessionInfo, current string, loading []string) {
	busy := make(map[string]bool, len(loading))
	for _, id := range loading {
		busy[id] = true
	}

	group := ""
	for i, s := range sessions {
		if s.Group != group {
			group = s.Group
			fmt.Fprintln(w, SectionStyle.Render(valueOr(group, model.GroupEarlier)))
		}
		marker := " "
		switch {
		case s.Key == current:
			marker = ">"
		case busy[s.Key]:
			marker = "*"
		}
		label := util.PadWidth(util.TruncateWidth(valueOr(s.Label, "(untitled)"), labelWidth), labelWidth)
		fmt.Fprintf(w, "%s %3d  %s  %s\n", marker, i+1, label, DimStyle.Render(s.Key))
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func newHistoryCmd(a *app) *cobra.Command {
	var (
		asJSON    bool
		reasoning bool
		code      bool
	)

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Print a session's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			if err := a.coord.Activate(ctx, args[0]); err != nil {
				return err
			}
			msgs := a.coord.Messages(args[0])

			switch {
			case asJSON:
				return writeJSON(a.stdout, msgs)
			case code:
				return printCode(a.stdout, lastAssistant(msgs).Content)
			}
			if len(msgs) == 0 {
				fmt.Fprintln(a.stdout, DimStyle.Render("No messages."))
				return nil
			}
			printTranscript(a.stdout, msgs, reasoning)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVarP(&reasoning, "reasoning", "r", false, "include reasoning traces")
	cmd.Flags().BoolVar(&code, "code", false, "print only the code blocks of the last answer")
	return cmd
}

func printTranscript(w io.Writer, msgs []model.Message, reasoning bool) {
	for i, msg := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := msg.Role.DisplayName()
		if msg.Model != "" {
			header += " (" + msg.Model + ")"
		}
		if msg.Role == model.RoleUser {
			fmt.Fprintln(w, PromptStyle.Render(header))
		} else {
			fmt.Fprintln(w, TitleStyle.Render(header))
		}
		if reasoning && msg.HasReasoning() {
			fmt.Fprintln(w, ReasoningStyle.Render(msg.ReasoningContent))
		}
		fmt.Fprintln(w, msg.Content)
		for _, c := range msg.Citations {
			fmt.Fprintln(w, DimStyle.Render("  ["+c+"]"))
		}
	}
}

func lastAssistant(msgs []model.Message) model.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return msgs[i]
		}
	}
	return model.Message{}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// contextOf returns the command's context, or Background when it runs
// outside ExecuteContext.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
