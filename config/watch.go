package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads a configuration file when it changes on disk.
type Watcher struct {
	watcher    *fsnotify.Watcher
	path       string
	debounceMs int
	timer      *time.Timer
	stopped    bool
	mu         sync.Mutex
	logger     *logrus.Entry
	onReload   func(*Config)
}

// NewWatcher watches the directory containing path. Editors often replace
// files rather than write them in place, so the directory is watched and
// events are filtered by name.
func NewWatcher(path string, debounceMs int, logger *logrus.Entry, onReload func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	if debounceMs <= 0 {
		debounceMs = 100
	}

	return &Watcher{
		watcher:    watcher,
		path:       abs,
		debounceMs: debounceMs,
		logger:     logger,
		onReload:   onReload,
	}, nil
}

// Start begins watching for config changes. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.handleChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.Close()
			return
		}
	}
}

// handleChange schedules a reload once the file has been quiet for the
// debounce interval. Every event restarts the interval, so a truncate followed
// by a write loads the final content only.
func (w *Watcher) handleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	delay := time.Duration(w.debounceMs) * time.Millisecond
	if w.timer != nil && w.timer.Stop() {
		w.logger.Debugf("Debounced: %s", filepath.Base(w.path))
	}
	w.timer = time.AfterFunc(delay, w.reload)
}

// reload loads the file. A file that fails to load keeps the previous
// configuration in effect.
func (w *Watcher) reload() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("Config reload failed, keeping previous configuration")
		return
	}

	w.logger.Infof("Config reloaded: %s", filepath.Base(w.path))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher, cancels a pending reload and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
