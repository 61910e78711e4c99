// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the chat screen.
type Theme struct {
	ColorProfile termenv.Profile

	// Header and session tabs
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabLoading  lipgloss.Style

	// Message bubbles
	UserLabel      lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantBody  lipgloss.Style
	Reasoning      lipgloss.Style
	ModelBadge     lipgloss.Style

	// Input and status
	InputPrompt lipgloss.Style
	StatusBar   lipgloss.Style
	Streaming   lipgloss.Style
	Notice      lipgloss.Style
	Error       lipgloss.Style
	Help        lipgloss.Style
}

// NewTheme creates the theme for the current terminal.
func NewTheme() *Theme {
	return newTheme(lipgloss.DefaultRenderer())
}

// NewThemeWithProfile creates a theme for a fixed color profile and a dark
// background. Ascii produces unstyled output, which tests rely on.
func NewThemeWithProfile(profile termenv.Profile) *Theme {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(profile)
	r.SetHasDarkBackground(true)
	return newTheme(r)
}

func newTheme(r *lipgloss.Renderer) *Theme {
	return &Theme{
		ColorProfile: r.ColorProfile(),

		Header:      r.NewStyle().Background(SurfaceDim).Padding(0, 1),
		HeaderTitle: r.NewStyle().Foreground(Cyan).Bold(true),
		TabActive:   r.NewStyle().Foreground(Cyan).Bold(true).Underline(true),
		TabInactive: r.NewStyle().Foreground(TextSecondary),
		TabLoading:  r.NewStyle().Foreground(Amber),

		UserLabel: r.NewStyle().Foreground(Cyan).Bold(true),
		UserBubble: r.NewStyle().
			Foreground(UserBubbleFg).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(UserBubbleBorder).
			PaddingLeft(1),
		AssistantLabel: r.NewStyle().Foreground(Purple).Bold(true),
		AssistantBody: r.NewStyle().
			Foreground(AssistantBubbleFg).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(AssistantBubbleBorder).
			PaddingLeft(1),
		Reasoning:  r.NewStyle().Foreground(TextMuted).Italic(true),
		ModelBadge: r.NewStyle().Foreground(TextMuted),

		InputPrompt: r.NewStyle().Foreground(Cyan).Bold(true),
		StatusBar:   r.NewStyle().Foreground(TextSecondary).Background(SurfaceDim).Padding(0, 1),
		Streaming:   r.NewStyle().Foreground(Amber),
		Notice:      r.NewStyle().Foreground(Amber).Bold(true),
		Error:       r.NewStyle().Foreground(Rose).Bold(true),
		Help:        r.NewStyle().Foreground(TextMuted),
	}
}
