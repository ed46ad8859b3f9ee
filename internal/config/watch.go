package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marcelocantos/retrack/internal/logging"
)

// Watcher keeps a config current with its file. Reads see either the old
// or the new config, never a partial one; a file that fails to load leaves
// the previous config in place.
type Watcher struct {
	path     string
	log      *logging.Logger
	onReload func(*Config)

	mu  sync.RWMutex
	cfg *Config

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Watch starts watching path. initial is served until the first successful
// reload; onReload, if non-nil, runs after each one.
func Watch(path string, initial *Config, log *logging.Logger, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	// Watch the directory: editors replace files rather than write them.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		log:      log,
		onReload: onReload,
		cfg:      initial,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Current returns the latest successfully loaded config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Close stops watching. Later calls return the first call's result.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.stopCh)
		w.closeErr = w.watcher.Close()
		<-w.done
	})
	return w.closeErr
}

func (w *Watcher) loop() {
	defer close(w.done)

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op.Has(fsnotify.Remove) {
				w.log.Warn("config file removed; keeping current config", "path", w.path)
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(100 * time.Millisecond)

		case <-debounce.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFrom(w.path)
	if err != nil {
		w.log.Warn("config reload failed; keeping previous config", "path", w.path, "error", err)
		return
	}
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
	w.log.Info("config reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Static serves a fixed config.
type Static struct{ Config *Config }

// Current returns the fixed config.
func (s Static) Current() *Config { return s.Config }
