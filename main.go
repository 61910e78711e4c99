// rigrun-chat - streaming multi-session chat client.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/rigrun-chat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version + " (" + GitCommit + ", " + BuildDate + ")"
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
