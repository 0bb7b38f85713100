package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileWatcher calls onChange after a watched file is written or replaced.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func() error
	logger   *zap.Logger
	debounce time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for path. The parent directory is also
// watched so atomic saves (write to temp file, rename) are seen.
func NewFileWatcher(path string, onChange func() error, logger *zap.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		logger.Warn("Failed to watch config directory", zap.Error(err))
	}

	return &FileWatcher{
		path:     path,
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching for changes
func (w *FileWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("File watcher started", zap.String("path", w.path))
}

// Stop stops watching for changes
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("File watcher stopped", zap.String("path", w.path))
	})
}

func (w *FileWatcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.handleChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *FileWatcher) handleChange() {
	if err := w.onChange(); err != nil {
		w.logger.Error("Failed to reload file, keeping previous version",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("File reloaded", zap.String("path", w.path))
}
