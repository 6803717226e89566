package board

import (
	"github.com/charmbracelet/log"
)

// NotifyKind classifies a user-facing notification.
type NotifyKind string

// NotifySuccess and related constants are the supported notification kinds.
const (
	NotifySuccess NotifyKind = "success"
	NotifyError   NotifyKind = "error"
	NotifyInfo    NotifyKind = "info"
)

// Notifier receives fire-and-forget notifications from the board.
type Notifier interface {
	Notify(message string, kind NotifyKind, autoDismiss bool)
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(message string, kind NotifyKind, autoDismiss bool)

// Notify calls f.
func (f NotifierFunc) Notify(message string, kind NotifyKind, autoDismiss bool) {
	f(message, kind, autoDismiss)
}

// LogNotifier writes notifications to a logger. It serves headless callers.
type LogNotifier struct {
	Logger *log.Logger
}

// Notify logs the message at a level matching kind.
func (n LogNotifier) Notify(message string, kind NotifyKind, _ bool) {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	switch kind {
	case NotifyError:
		logger.Error(message)
	case NotifySuccess:
		logger.Info(message, "kind", string(kind))
	default:
		logger.Info(message)
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(string, NotifyKind, bool) {}
