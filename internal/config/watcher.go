package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeHandler is invoked with the freshly reloaded configuration.
type ChangeHandler func(cfg *Config)

// Watcher hot-reloads the config file and notifies registered handlers.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handlers []ChangeHandler
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewWatcher watches the directory containing path so editors that
// rename-on-save still trigger reloads.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		path:    path,
		watcher: fw,
		stopCh:  make(chan struct{}),
		logger:  logger,
	}, nil
}

// OnChange registers a handler; handlers run sequentially on reload.
func (w *Watcher) OnChange(h ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching; returns immediately.
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load()
			if err != nil {
				w.logger.Warn("Config reload failed, keeping previous config",
					zap.String("file", w.path), zap.Error(err))
				continue
			}
			w.logger.Info("Config reloaded", zap.String("file", w.path))
			w.mu.Lock()
			handlers := append([]ChangeHandler(nil), w.handlers...)
			w.mu.Unlock()
			for _, h := range handlers {
				h(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

// Stop ends watching and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}
