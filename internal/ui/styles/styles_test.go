// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func TestAsciiThemeIsPlain(t *testing.T) {
	theme := NewThemeWithProfile(termenv.Ascii)

	got := theme.Error.Render("boom")
	if strings.Contains(got, "\x1b[") {
		t.Errorf("ascii theme should not emit escape codes: %q", got)
	}
	if !strings.Contains(got, "boom") {
		t.Errorf("rendered text missing: %q", got)
	}
}

func TestColorThemeStyles(t *testing.T) {
	theme := NewThemeWithProfile(termenv.TrueColor)

	got := theme.HeaderTitle.Render("rigrun-chat")
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("truecolor theme should emit escape codes: %q", got)
	}
}
