package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ignoreWindow suppresses reloads caused by our own saves.
const ignoreWindow = 500 * time.Millisecond

const debounceDelay = 100 * time.Millisecond

// Watcher signals when the preferences file changes outside this process.
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	logger    *log.Logger
	reloadCh  chan struct{}
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	started  bool
	closed   bool
	lastMod  time.Time
	lastSize int64
	lastSave time.Time
}

// NewWatcher watches path. The file may not exist yet; its directory must.
func NewWatcher(path string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	resolved := resolvePath(path)
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preferences dir %s: %w", dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// The parent directory is watched so atomic renames are seen.
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	w := &Watcher{
		watcher:  fw,
		path:     resolved,
		logger:   logger,
		reloadCh: make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	if info, err := os.Stat(resolved); err == nil {
		w.lastMod = info.ModTime()
		w.lastSize = info.Size()
	}
	return w, nil
}

// Start runs the event loop in a goroutine. It is a no-op after Close.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.loop()
}

// Reloads returns the channel signaled after an external edit. It is closed
// by Close once the event loop has exited.
func (w *Watcher) Reloads() <-chan struct{} {
	return w.reloadCh
}

// NotifySave marks an imminent save by this process.
func (w *Watcher) NotifySave() {
	w.mu.Lock()
	w.lastSave = time.Now()
	w.mu.Unlock()
}

// Close stops the watcher and closes the reload channel.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		started := w.started
		w.mu.Unlock()

		close(w.closeCh)
		err = w.watcher.Close()
		if started {
			<-w.done
		}
		close(w.reloadCh)
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	debounce := time.NewTimer(0)
	debounce.Stop()
	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if resolvePath(event.Name) != w.path {
				continue
			}
			if event.Op&fsnotify.Remove == fsnotify.Remove {
				continue
			}
			debounce.Reset(debounceDelay)
		case <-debounce.C:
			w.checkAndNotify()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("preferences watcher error", "err", err)
		}
	}
}

func (w *Watcher) checkAndNotify() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}

	w.mu.Lock()
	ownSave := time.Since(w.lastSave) < ignoreWindow
	changed := !info.ModTime().Equal(w.lastMod) || info.Size() != w.lastSize
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
	w.mu.Unlock()

	if ownSave || !changed {
		return
	}
	w.logger.Debug("preferences changed on disk", "path", w.path)
	select {
	case w.reloadCh <- struct{}{}:
	default:
	}
}

func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	// The file itself may not exist yet; resolve the directory instead.
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}
	return abs
}
