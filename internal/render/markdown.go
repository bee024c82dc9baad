// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant markdown into terminal output and paces
// the word-by-word reveal of streamed replies.
package render

import (
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

var fencedBlockRegex = regexp.MustCompile("(?s)```([a-zA-Z0-9+-]*)\n(.*?)```")

// =============================================================================
// RENDERER
// =============================================================================

// Renderer formats assistant replies for the terminal. In plain mode
// markdown structure is kept as-is and only fenced code is highlighted; in
// styled mode glamour renders the full document.
type Renderer struct {
	mu    sync.Mutex
	tr    *glamour.TermRenderer
	width int
	plain bool
}

// New creates a renderer for the given width. Plain disables glamour.
func New(width int, plain bool) *Renderer {
	r := &Renderer{width: width, plain: plain}
	if width <= 0 {
		r.width = DefaultWidth
	}
	r.rebuild()
	return r
}

// SetWidth rebuilds the renderer after a terminal resize.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.width {
		return
	}
	r.width = width
	r.rebuild()
}

// rebuild creates the glamour renderer. Callers hold the lock, except New.
func (r *Renderer) rebuild() {
	if r.plain {
		r.tr = nil
		return
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		// Fall back to plain output if the renderer cannot be built.
		r.tr = nil
		return
	}
	r.tr = tr
}

// Render formats a complete markdown document. Rendering failures return
// the input unchanged so a reply is never lost to a formatting bug.
func (r *Renderer) Render(markdown string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tr == nil {
		return r.renderPlain(markdown)
	}
	out, err := r.tr.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// renderPlain keeps the markdown text but still colors fenced code blocks.
func (r *Renderer) renderPlain(markdown string) string {
	return fencedBlockRegex.ReplaceAllStringFunc(markdown, func(block string) string {
		m := fencedBlockRegex.FindStringSubmatch(block)
		if m == nil {
			return block
		}
		highlighted := HighlightCode(m[2], m[1])
		return highlighted
	})
}
