package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// board geometry in terminal cells.
const (
	headerRows     = 2
	columnChrome   = 5 // border (2) + padding (2) + gap (1)
	columnHeadRows = 3 // title, total, spacer
	minColumnInner = 18
	maxColumnInner = 34
	minBoardInner  = 6
	defaultWidth   = 120
	defaultHeight  = 36
)

// columnGeometry reports the inner column width, the first visible column and
// how many columns fit on screen.
func (m Model) columnGeometry(total int) (inner, first, count int) {
	width := m.viewWidth()
	if total <= 0 {
		total = 1
	}
	inner = clamp(width/total-columnChrome, minColumnInner, maxColumnInner)
	count = min(max(1, width/(inner+columnChrome)), total)
	first = clamp(m.firstColumn, 0, total-count)
	return inner, first, count
}

// scrollColumns keeps the focused column on screen. The focus is the hover
// target during a keyboard grab and the selected column otherwise.
func (m *Model) scrollColumns() {
	total := len(m.board.Columns())
	if total == 0 {
		m.firstColumn = 0
		return
	}
	_, first, count := m.columnGeometry(total)
	focus := m.selectedColumn
	if m.keyboardGrab {
		if idx := m.hoverColumnIndex(); idx >= 0 {
			focus = idx
		}
	}
	if focus < first {
		first = focus
	}
	if focus >= first+count {
		first = focus - count + 1
	}
	m.firstColumn = clamp(first, 0, total-count)
}

// boardInnerHeight is the number of content rows inside a column border.
func (m Model) boardInnerHeight() int {
	footer := lipgloss.Height(m.renderFooter())
	return max(minBoardInner, m.viewHeight()-headerRows-footer-2)
}

// boardTop returns the row of the column top borders.
func (m Model) boardTop() int {
	return headerRows
}

func (m Model) viewWidth() int {
	if m.width > 0 {
		return m.width
	}
	return defaultWidth
}

func (m Model) viewHeight() int {
	if m.height > 0 {
		return m.height
	}
	return defaultHeight
}

// columnAt maps a pointer position onto a column index. Positions on the
// header, footer or the gap between columns map to nothing.
func (m Model) columnAt(x, y int) (int, bool) {
	columns := m.board.Columns()
	if len(columns) == 0 {
		return 0, false
	}
	top := m.boardTop()
	if y < top || y > top+m.boardInnerHeight()+1 || x < 0 {
		return 0, false
	}
	inner, first, count := m.columnGeometry(len(columns))
	stride := inner + columnChrome
	slot := x / stride
	if slot >= count || x%stride >= stride-1 {
		return 0, false
	}
	idx := first + slot
	if idx >= len(columns) {
		return 0, false
	}
	return idx, true
}

// stageAt returns the stage id under the pointer, or "" when none.
func (m Model) stageAt(x, y int) string {
	idx, ok := m.columnAt(x, y)
	if !ok {
		return ""
	}
	return m.board.Columns()[idx].Stage.ID
}

// cardSpan is the row range of one card relative to the first card row.
type cardSpan struct {
	start int
	end   int
}

// cardSpans lays out the cards of one column.
func (m Model) cardSpans(column int) []cardSpan {
	columns := m.board.Columns()
	if column < 0 || column >= len(columns) {
		return nil
	}
	spans := make([]cardSpan, 0, len(columns[column].Items))
	row := 0
	for _, item := range columns[column].Items {
		height := max(1, len(m.cardRows(item)))
		spans = append(spans, cardSpan{start: row, end: row + height - 1})
		row += height + 1
	}
	return spans
}

// cardScroll returns the first visible card row of a column.
func (m Model) cardScroll(column int, spans []cardSpan) int {
	if column != m.selectedColumn || m.selectedCard < 0 || m.selectedCard >= len(spans) {
		return 0
	}
	window := max(1, m.boardInnerHeight()-columnHeadRows)
	selected := spans[m.selectedCard]
	top := 0
	if selected.end >= window {
		top = selected.end - window + 1
	}
	if selected.start < top {
		top = selected.start
	}
	return max(0, top)
}

// cardAt maps a pointer position onto a column and card index.
func (m Model) cardAt(x, y int) (int, int, bool) {
	column, ok := m.columnAt(x, y)
	if !ok {
		return 0, 0, false
	}
	spans := m.cardSpans(column)
	row := y - (m.boardTop() + 1) - columnHeadRows
	if row < 0 || row >= m.boardInnerHeight()-columnHeadRows {
		return column, 0, false
	}
	row += m.cardScroll(column, spans)
	for idx, span := range spans {
		if row >= span.start && row <= span.end {
			return column, idx, true
		}
	}
	return column, 0, false
}

// clamp clamps v into [minV, maxV]; an empty range returns minV.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max == 1 {
		return string(rs[:1])
	}
	return string(rs[:max-1]) + "…"
}

// padCell right-pads styled text to exactly width cells.
func padCell(s string, width int) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// fitLines trims or pads content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayCentered composes overlay over the middle of base.
func overlayCentered(base, overlay string, width, height int) string {
	if strings.TrimSpace(overlay) == "" {
		return base
	}
	placed := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	return compose(base, placed, 0, 0, width, height)
}

// overlayAt composes overlay over base with its top-left corner at (x, y).
func overlayAt(base, overlay string, x, y, width, height int) string {
	if strings.TrimSpace(overlay) == "" {
		return base
	}
	return compose(base, overlay, max(0, x), max(0, y), width, height)
}

func compose(base, overlay string, x, y, width, height int) string {
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(max(width, lipgloss.Width(base)), height)
	canvas.Compose(lipgloss.NewLayer(base).X(0).Y(0).Z(0))
	canvas.Compose(lipgloss.NewLayer(overlay).X(x).Y(y).Z(10))
	return canvas.Render()
}
