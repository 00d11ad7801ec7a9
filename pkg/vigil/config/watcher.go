package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds the most recently loaded Config of one file and reloads it
// when the file changes.
type Watcher struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	current  Config
	onChange []func(Config)
}

// NewWatcher loads and validates path once. A nil logger discards reload
// failures.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{path: filepath.Clean(path), logger: logger, current: cfg}, nil
}

// Config returns the current configuration.
func (w *Watcher) Config() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Watch starts a background goroutine that reloads the file whenever it is
// written or replaced. A file that fails to load keeps the previous
// configuration. Call the returned stop function to clean up.
func (w *Watcher) Watch() (stop func(), err error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	// Watch the directory so editors that rename over the file are seen.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", w.path, err)
	}

	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer fw.Close()
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := w.Reload(); err != nil {
						w.logReloadFailure(err)
					}
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watcher error", "path", w.path, "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }, nil
}

func (w *Watcher) logReloadFailure(err error) {
	attrs := []any{"path", w.path, "error", err}
	var se *SectionError
	if errors.As(err, &se) && se.Section != "" {
		attrs = append(attrs, "section", se.Section)
	}
	w.logger.Warn("config reload failed", attrs...)
}

// Reload re-reads and validates the file immediately and runs the OnChange
// callbacks. A file that fails to parse or has an invalid section is
// rejected with a *SectionError and the previous config stays current.
func (w *Watcher) Reload() (Config, error) {
	cfg, err := Load(w.path)
	if err != nil {
		return Config{}, err
	}
	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}
