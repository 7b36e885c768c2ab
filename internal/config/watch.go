package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"local-traffic/internal/applog"
)

// debounceDelay matches onurartan-mockserver's watchConfigFile debounce
// window: fast successive writes (editors that truncate-then-write)
// collapse into a single reload.
const debounceDelay = 500 * time.Millisecond

// Watcher hot-reloads a config file, debouncing rapid writes and invoking
// onChange with the freshly loaded Config.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onChange func(*Config)

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
}

// Watch starts watching path and returns a Watcher; call Close to stop.
// onChange is invoked on its own goroutine after each debounced reload.
func Watch(path string, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, fsw: fsw, onChange: onChange, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			applog.Error("config watcher: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path, false)
	if err != nil {
		applog.Error("config: reload of %s failed: %v", w.path, err)
		return
	}
	applog.Info("config: reloaded from %s", w.path)
	w.onChange(cfg)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
