package tui

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/funnel/internal/domain"
	"github.com/evanschultz/funnel/internal/prefs"
)

// Option configures a Model.
type Option func(*Model)

// PreferenceWatcher reports external edits of the card field preferences.
type PreferenceWatcher interface {
	Reloads() <-chan struct{}
	NotifySave()
}

// WithFieldStore sets the card field store.
func WithFieldStore(store *prefs.Store) Option {
	return func(m *Model) {
		if store != nil {
			m.fieldStore = store
		}
	}
}

// WithPreferenceWatcher reloads card fields when the preferences file changes.
func WithPreferenceWatcher(w PreferenceWatcher) Option {
	return func(m *Model) {
		m.watcher = w
	}
}

// WithPipeline selects the pipeline shown first.
func WithPipeline(p domain.Pipeline) Option {
	return func(m *Model) {
		for idx, candidate := range m.pipelines {
			if candidate == p {
				m.pipelineIdx = idx
			}
		}
	}
}

// WithCurrencyPrefix sets the prefix of monetary values.
func WithCurrencyPrefix(prefix string) Option {
	return func(m *Model) {
		m.currencyPrefix = prefix
	}
}

// WithDragThreshold sets how far the pointer travels before a press becomes a drag.
func WithDragThreshold(cells int) Option {
	return func(m *Model) {
		if cells > 0 {
			m.dragThreshold = cells
		}
	}
}

// WithActivationWindow sets the double-click window.
func WithActivationWindow(window time.Duration) Option {
	return func(m *Model) {
		if window > 0 {
			m.activationWindow = window
		}
	}
}

// WithToastDuration sets how long notifications stay visible.
func WithToastDuration(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.toastDuration = d
		}
	}
}

// WithLogger routes board warnings to logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for double-click detection.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithClipboard overrides the clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}
