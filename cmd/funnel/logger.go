package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/evanschultz/funnel/internal/config"
)

// runtimeLogger fans log events to a styled console sink and an optional rotating file sink.
type runtimeLogger struct {
	consoleSink    *charmLog.Logger
	fileSink       *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	filePath       string
}

// newRuntimeLogger configures the console sink and, when enabled, the rotating file sink.
func newRuntimeLogger(stderr io.Writer, appName string, cfg config.LoggingConfig, logDir string) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}

	logger := &runtimeLogger{
		consoleSink: charmLog.NewWithOptions(stderr, charmLog.Options{
			Level:           level,
			Prefix:          appName,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       charmLog.TextFormatter,
		}),
		consoleEnabled: true,
	}
	if !cfg.File.Enabled {
		return logger, nil
	}

	dir := strings.TrimSpace(cfg.File.Dir)
	if dir == "" {
		dir = logDir
	}
	if dir == "" {
		return nil, errors.New("log file dir is required")
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, sanitizeLogFileStem(appName)+".log"),
		MaxSize:    cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   true,
	}
	// File output stays unstyled logfmt so it can be grepped.
	logger.fileSink = charmLog.NewWithOptions(rotator, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.closeFile = rotator.Close
	logger.filePath = rotator.Filename
	return logger, nil
}

// FilePath returns the active log file, or "" when file logging is off.
func (l *runtimeLogger) FilePath() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Close flushes and closes the file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled toggles the console sink; the TUI mutes it while it owns the terminal.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// Sink returns the logger handed to components: the file sink when enabled,
// then the console sink, and a discarding logger when both are off.
func (l *runtimeLogger) Sink() *charmLog.Logger {
	switch {
	case l == nil:
		return charmLog.New(io.Discard)
	case l.fileSink != nil:
		return l.fileSink
	case l.consoleEnabled:
		return l.consoleSink
	default:
		return charmLog.New(io.Discard)
	}
}

func (l *runtimeLogger) sinks() []*charmLog.Logger {
	if l == nil {
		return nil
	}
	out := make([]*charmLog.Logger, 0, 2)
	if l.consoleEnabled {
		out = append(out, l.consoleSink)
	}
	if l.fileSink != nil {
		out = append(out, l.fileSink)
	}
	return out
}

// Debug logs to every active sink.
func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	for _, sink := range l.sinks() {
		sink.Debug(msg, keyvals...)
	}
}

// Info logs to every active sink.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	for _, sink := range l.sinks() {
		sink.Info(msg, keyvals...)
	}
}

// Warn logs to every active sink.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	for _, sink := range l.sinks() {
		sink.Warn(msg, keyvals...)
	}
}

// Error logs to every active sink.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	for _, sink := range l.sinks() {
		sink.Error(msg, keyvals...)
	}
}

// sanitizeLogFileStem keeps app names safe for file names.
func sanitizeLogFileStem(appName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(appName)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	stem := strings.Trim(b.String(), "-")
	if stem == "" {
		return "funnel"
	}
	return stem
}
