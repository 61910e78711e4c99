// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Answers are wrapped to the terminal, but never narrower than minWidth.
const (
	fallbackWidth = 80
	minWidth      = 40
)

// terminalFd returns the descriptor behind w when w is a terminal.
func terminalFd(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// isTerminalWriter reports whether w is a terminal. Buffers and pipes
// never are.
func isTerminalWriter(w io.Writer) bool {
	_, ok := terminalFd(w)
	return ok
}

// terminalWidth returns the column count of the terminal behind w.
func terminalWidth(w io.Writer) int {
	fd, ok := terminalFd(w)
	if !ok {
		return fallbackWidth
	}
	width, _, err := term.GetSize(fd)
	switch {
	case err != nil || width <= 0:
		return fallbackWidth
	case width < minWidth:
		return minWidth
	}
	return width
}

// colorsOn is decided once: NO_COLOR wins over FORCE_COLOR, and without
// either colors follow whether stdout is a terminal (https://no-color.org/).
var colorsOn = sync.OnceValue(func() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return isTerminalWriter(os.Stdout)
})

// ColorsEnabled reports whether output is colored.
func ColorsEnabled() bool {
	return colorsOn()
}

// colorProfile is the termenv profile the lipgloss styles render with.
func colorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
