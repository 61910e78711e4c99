// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/ui/chat"
	"github.com/jeranaias/rigrun-chat/internal/ui/styles"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Full screen chat with one tab per session",
		Long: `Start the full screen chat.

enter sends, esc stops the answer of the current tab, tab and shift+tab
switch sessions while the others keep streaming, ctrl+n opens a new
session, f1 shows all keys. Logs go to the log file only.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLog: "file"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(contextOf(cmd))
			defer cancel()
			a.watchConfig(ctx)

			cfg := a.config()
			markdownStyle := cfg.UI.Glamour()
			if !ColorsEnabled() && markdownStyle != "" {
				markdownStyle = "notty"
			}

			return chat.Run(chat.Options{
				Coordinator:   a.coord,
				Sessions:      sessionService{a},
				Tokens:        a.tokens,
				Params:        a.params,
				Logger:        a.logger,
				Theme:         styles.NewTheme(),
				ShowReasoning: cfg.UI.ShowReasoning,
				MarkdownStyle: markdownStyle,
				Rejections:    a.rejections,
			})
		},
	}
}
