package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/log"
)

// Watcher watches a configuration file for changes and re-applies its
// contents to a live Config on every write.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	target   *Config
	mu       sync.RWMutex
	onChange []func(*Config)
	logger   zerolog.Logger
	stopCh   chan struct{}

	lastReload time.Time
}

// NewWatcher creates a watcher that copies every key of the file at path
// into target on each reload. Keys removed from the file keep their last
// value in target, and a change within 100ms of the previous reload is not
// applied. The file must be loadable at creation time.
func NewWatcher(path string, target *Config) (*Watcher, error) {
	loaded, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	applyAll(target, loaded)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		target:  target,
		logger:  log.WithComponent("config-watcher"),
		stopCh:  make(chan struct{}),
	}
	return w, nil
}

// OnChange registers a callback invoked after each successful reload
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching for file changes
func (w *Watcher) Start() {
	go w.run()
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	// Editors fire several events per save; collapse bursts
	if time.Since(w.lastReload) < 100*time.Millisecond {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	callbacks := make([]func(*Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	loaded, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("Failed to reload config")
		return
	}
	applyAll(w.target, loaded)

	w.logger.Info().Str("path", w.path).Msg("Config reloaded")
	for _, fn := range callbacks {
		fn(w.target)
	}
}

func applyAll(dst, src *Config) {
	for _, k := range src.Keys() {
		v, _ := src.String(k)
		dst.Set(k, v)
	}
}
