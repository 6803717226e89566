package tui

import (
	"strings"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/funnel/internal/board"
)

// DefaultToastDuration is how long auto-dismissing toasts stay visible.
const DefaultToastDuration = 4 * time.Second

const (
	maxVisibleToasts = 4
	toastWidth       = 44
)

// toast is one visible notification.
type toast struct {
	id          int
	kind        board.NotifyKind
	message     string
	autoDismiss bool
}

// toastExpiredMsg dismisses one toast.
type toastExpiredMsg struct {
	id int
}

// toastQueue collects notifications raised during one update. It is the
// board's Notifier; the model drains it after every board call.
type toastQueue struct {
	mu      sync.Mutex
	next    int
	pending []toast
}

// Notify queues one toast.
func (q *toastQueue) Notify(message string, kind board.NotifyKind, autoDismiss bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.pending = append(q.pending, toast{
		id:          q.next,
		kind:        kind,
		message:     strings.TrimSpace(message),
		autoDismiss: autoDismiss,
	})
}

func (q *toastQueue) drain() []toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// flushToasts moves queued notifications onto the stack and schedules their
// dismissal.
func (m *Model) flushToasts() tea.Cmd {
	pending := m.notifications.drain()
	if len(pending) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(pending))
	for _, t := range pending {
		m.toasts = append(m.toasts, t)
		if !t.autoDismiss {
			continue
		}
		id := t.id
		cmds = append(cmds, tea.Tick(m.toastDuration, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		}))
	}
	if extra := len(m.toasts) - maxVisibleToasts; extra > 0 {
		m.toasts = append([]toast(nil), m.toasts[extra:]...)
	}
	return tea.Batch(cmds...)
}

// dismissToast removes one toast; unknown ids are ignored.
func (m *Model) dismissToast(id int) {
	for idx, t := range m.toasts {
		if t.id == id {
			m.toasts = append(m.toasts[:idx:idx], m.toasts[idx+1:]...)
			return
		}
	}
}

// notify raises a model-originated toast.
func (m *Model) notify(message string, kind board.NotifyKind) tea.Cmd {
	m.notifications.Notify(message, kind, true)
	return m.flushToasts()
}

func (m Model) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	base := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)
	rendered := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		style := base.BorderForeground(lipgloss.Color("62"))
		switch t.kind {
		case board.NotifySuccess:
			style = base.BorderForeground(lipgloss.Color("42"))
		case board.NotifyError:
			style = base.BorderForeground(lipgloss.Color("203")).Foreground(lipgloss.Color("203"))
		}
		rendered = append(rendered, style.Render(truncate(t.message, toastWidth)))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}
