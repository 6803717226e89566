package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const minNotesWrap = 24

// notesRenderer renders item notes as markdown. The glamour renderer is
// rebuilt only when the wrap width changes.
type notesRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render returns styled notes, or the raw text when glamour fails.
func (r *notesRenderer) render(notes string, width int) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ""
	}
	width = max(width, minNotesWrap)
	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return notes
		}
		r.renderer = renderer
		r.width = width
	}
	out, err := r.renderer.Render(notes)
	if err != nil {
		return notes
	}
	return strings.Trim(out, "\n")
}
