package tui

import (
	"fmt"
	"image/color"
	"slices"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/evanschultz/funnel/internal/domain"
)

// fieldPicker edits a draft of the visible card fields. Selected fields keep
// the order in which they were enabled.
type fieldPicker struct {
	cursor   int
	selected []domain.FieldID
}

func newFieldPicker(current []domain.FieldID) fieldPicker {
	selected := make([]domain.FieldID, 0, len(current))
	for _, field := range current {
		if domain.IsKnownField(field) && !slices.Contains(selected, field) {
			selected = append(selected, field)
		}
	}
	return fieldPicker{selected: selected}
}

func (p *fieldPicker) move(delta int) {
	p.cursor = clamp(p.cursor+delta, 0, len(domain.KnownFields())-1)
}

// toggle flips the field under the cursor. It reports false when enabling
// would exceed the visible field cap.
func (p *fieldPicker) toggle() bool {
	field := domain.KnownFields()[p.cursor]
	if idx := slices.Index(p.selected, field); idx >= 0 {
		p.selected = slices.Delete(p.selected, idx, idx+1)
		return true
	}
	if len(p.selected) >= domain.MaxVisibleCardFields {
		return false
	}
	p.selected = append(p.selected, field)
	return true
}

func (p *fieldPicker) reset(defaults []domain.FieldID) {
	p.selected = slices.Clone(defaults)
}

func (p fieldPicker) render(accent, muted color.Color) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

	lines := []string{
		titleStyle.Render(fmt.Sprintf("Card fields (%d/%d)", len(p.selected), domain.MaxVisibleCardFields)),
		"",
	}
	for idx, field := range domain.KnownFields() {
		mark := "[ ]"
		if pos := slices.Index(p.selected, field); pos >= 0 {
			mark = fmt.Sprintf("[%d]", pos+1)
		}
		line := mark + " " + domain.FieldLabel(field)
		if idx == p.cursor {
			line = cursorStyle.Render("› " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", hintStyle.Render("space toggle • d default • enter save • esc cancel"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}
