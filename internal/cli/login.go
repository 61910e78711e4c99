// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/backend"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		token string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in anonymously or with a token",
		Long: `Log in to the backend.

Without flags an anonymous user is created. --token stores an existing
access token instead. The user is kept in ~/.rigrun-chat/user.json and
its token is refreshed when it is about to expire.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)

			if user, ok := a.auth.User(); ok && !force && token == "" && !a.auth.Expired() {
				printUser(a, user)
				fmt.Fprintln(a.stderr, DimStyle.Render("Already logged in. Use --force to start over."))
				return nil
			}

			var user backend.User
			var err error
			if token != "" {
				user = backend.User{Token: token, Type: backend.UserRegular}
				err = a.auth.SetUser(user)
			} else {
				user, err = a.auth.LoginAnonymous(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stderr, SuccessStyle.Render("Logged in"))
			printUser(a, user)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "store this access token")
	cmd.Flags().BoolVar(&force, "force", false, "log in again even when a user is stored")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.stderr, SuccessStyle.Render("Logged out"))
			return nil
		},
	}
}

func printUser(a *app, user backend.User) {
	kind := "regular"
	if user.IsAnonymous() {
		kind = "anonymous"
	}
	fmt.Fprintln(a.stdout, RenderLabel("User")+valueOr(string(user.UserID), "(unknown)"))
	fmt.Fprintln(a.stdout, RenderLabel("Type")+kind)
	if exp, ok := auth.Expiry(user); ok {
		fmt.Fprintln(a.stdout, RenderLabel("Token expires")+exp.Local().Format(time.RFC3339))
	}
	fmt.Fprintln(a.stdout, RenderLabel("Stored in")+a.auth.Path())
}
