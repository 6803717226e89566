package tui

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/funnel/internal/board"
)

// TestColumnGeometry verifies column widths and horizontal scrolling.
func TestColumnGeometry(t *testing.T) {
	m := NewModel(newFakeService(t), WithLogger(discardLogger()))
	m.width = 120

	inner, first, count := m.columnGeometry(2)
	if inner != maxColumnInner || first != 0 || count != 2 {
		t.Fatalf("columnGeometry(2) = %d,%d,%d", inner, first, count)
	}
	inner, _, count = m.columnGeometry(10)
	if inner != minColumnInner || count != 5 {
		t.Fatalf("columnGeometry(10) = inner %d count %d", inner, count)
	}

	m.width = 40
	m.firstColumn = 7
	if _, first, count := m.columnGeometry(3); first != 2 || count != 1 {
		t.Fatalf("expected first column clamped to 2 with one visible, got %d,%d", first, count)
	}
}

// TestHitTesting verifies pointer positions map onto columns and cards.
func TestHitTesting(t *testing.T) {
	m := loadReadyModel(t, newFakeService(t))
	y := firstCardRow(m)

	cases := []struct {
		name  string
		x, y  int
		stage string
	}{
		{name: "first column", x: 4, y: y, stage: "new"},
		{name: "second column", x: 45, y: y, stage: "contacted"},
		{name: "gap between columns", x: 38, y: y, stage: ""},
		{name: "header row", x: 4, y: 0, stage: ""},
		{name: "past the last column", x: 100, y: y, stage: ""},
		{name: "negative x", x: -1, y: y, stage: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.stageAt(tc.x, tc.y); got != tc.stage {
				t.Fatalf("stageAt(%d,%d) = %q, want %q", tc.x, tc.y, got, tc.stage)
			}
		})
	}

	if column, card, ok := m.cardAt(4, y+2); !ok || column != 0 || card != 0 {
		t.Fatalf("cardAt on value row = %d,%d,%t", column, card, ok)
	}
	if _, _, ok := m.cardAt(4, y+3); ok {
		t.Fatal("expected the row below the only card to miss")
	}
	if _, _, ok := m.cardAt(4, y-1); ok {
		t.Fatal("expected the column head to miss")
	}
}

// TestCardSpans verifies card rows follow the visible fields.
func TestCardSpans(t *testing.T) {
	m := loadReadyModel(t, newFakeService(t))
	spans := m.cardSpans(0)
	if len(spans) != 1 || spans[0] != (cardSpan{start: 0, end: 2}) {
		t.Fatalf("unexpected spans %#v", spans)
	}
	if spans := m.cardSpans(5); spans != nil {
		t.Fatalf("expected nil spans for a missing column, got %#v", spans)
	}
}

// TestTextHelpers verifies truncation, padding and line fitting.
func TestTextHelpers(t *testing.T) {
	if got := truncate("Padaria Sol", 5); got != "Pada…" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("ação", 4); got != "ação" {
		t.Fatalf("truncate() multibyte = %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Fatalf("truncate() zero = %q", got)
	}
	if got := padCell("ab", 4); got != "ab  " {
		t.Fatalf("padCell() = %q", got)
	}
	if got := fitLines("a\nb\nc", 2); got != "a\n…" {
		t.Fatalf("fitLines() trim = %q", got)
	}
	if got := fitLines("a", 3); strings.Count(got, "\n") != 2 {
		t.Fatalf("fitLines() pad = %q", got)
	}
	if got := clamp(5, 0, -1); got != 0 {
		t.Fatalf("clamp() empty range = %d", got)
	}
}

// TestToastStack verifies queued notifications, the visible cap and dismissal.
func TestToastStack(t *testing.T) {
	m := NewModel(newFakeService(t), WithLogger(discardLogger()), WithToastDuration(time.Millisecond))
	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		m.notifications.Notify(msg, board.NotifyInfo, true)
	}
	m.notifications.Notify("sticky", board.NotifyError, false)
	if cmd := m.flushToasts(); cmd == nil {
		t.Fatal("expected dismissal timers")
	}
	if len(m.toasts) != maxVisibleToasts {
		t.Fatalf("visible toasts = %d, want %d", len(m.toasts), maxVisibleToasts)
	}
	if m.toasts[0].message != "three" || m.toasts[len(m.toasts)-1].message != "sticky" {
		t.Fatalf("unexpected stack %#v", m.toasts)
	}
	if cmd := m.flushToasts(); cmd != nil {
		t.Fatal("expected an empty queue to produce no command")
	}

	id := m.toasts[0].id
	m, _ = applyMsg(t, m, toastExpiredMsg{id: id})
	if len(m.toasts) != maxVisibleToasts-1 || m.toasts[0].message != "four" {
		t.Fatalf("unexpected stack after dismissal %#v", m.toasts)
	}
	m, _ = applyMsg(t, m, toastExpiredMsg{id: id})
	if len(m.toasts) != maxVisibleToasts-1 {
		t.Fatal("expected unknown ids to be ignored")
	}
	if rendered := m.renderToasts(); !strings.Contains(rendered, "sticky") {
		t.Fatalf("rendered toasts missing message: %q", rendered)
	}

	m, _ = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if len(m.toasts) != 0 {
		t.Fatal("expected esc to clear toasts")
	}
}

// TestToastExpiresAfterDuration verifies the dismissal timer fires for the toast.
func TestToastExpiresAfterDuration(t *testing.T) {
	m := NewModel(newFakeService(t), WithLogger(discardLogger()), WithToastDuration(time.Millisecond))
	cmd := m.notify("saved", board.NotifySuccess)
	msgs := execCmd(t, cmd)
	if len(msgs) != 1 {
		t.Fatalf("expected one expiry message, got %#v", msgs)
	}
	m, _ = applyMsg(t, m, msgs[0])
	if len(m.toasts) != 0 {
		t.Fatalf("expected toast to expire, got %#v", m.toasts)
	}
}
