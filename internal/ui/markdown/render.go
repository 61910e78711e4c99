// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Glamour style names accepted by New.
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

// Renderer renders markdown at a fixed wrap width. Results are cached per
// key, so callers should only pass keys whose content no longer changes.
type Renderer struct {
	term  *glamour.TermRenderer
	width int

	mu    sync.Mutex
	cache map[string]string
}

// New creates a renderer wrapping at width columns.
func New(width int, style string) (*Renderer, error) {
	if width <= 0 {
		width = 80
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == StyleAuto {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	term, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return &Renderer{term: term, width: width, cache: make(map[string]string)}, nil
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	if r == nil {
		return 0
	}
	return r.width
}

// Render renders md. On failure, or with a nil renderer, md comes back
// unchanged.
func (r *Renderer) Render(md string) string {
	if r == nil {
		return md
	}
	out, err := r.term.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

// RenderCached is Render memoized on key.
func (r *Renderer) RenderCached(key, md string) string {
	if r == nil {
		return md
	}
	r.mu.Lock()
	out, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return out
	}

	out = r.Render(md)
	r.mu.Lock()
	r.cache[key] = out
	r.mu.Unlock()
	return out
}
