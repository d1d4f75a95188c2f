package ops

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const DefaultDebounce = 300 * time.Millisecond

// Watch calls onChange with the reloaded configuration whenever the file at
// path is written, created or renamed. Bursts of events inside debounce are
// collapsed into one reload. Configurations that fail to load or validate,
// or that equal the last delivered one, are dropped.
func Watch(ctx context.Context, path string, current Config, debounce time.Duration, onChange func(Config)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new watcher")
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return errors.Wrap(err, "watch config dir").With("path", path)
	}

	w := &configWatcher{path: path, last: current, onChange: onChange}
	go w.loop(ctx, watcher, debounce)
	return nil
}

type configWatcher struct {
	mu       sync.Mutex
	path     string
	last     Config
	onChange func(Config)
}

func (w *configWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration) {
	defer watcher.Close()

	var timerMu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, w.reload)
		timerMu.Unlock()
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isConfigEvent(evt, w.path) {
				continue
			}
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				logs.Errorf("config watcher error: %+v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func isConfigEvent(evt fsnotify.Event, path string) bool {
	if filepath.Clean(evt.Name) != filepath.Clean(path) {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *configWatcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logs.Errorf("config reload failed: %+v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logs.Errorf("config validation failed: %+v", err)
		return
	}

	w.mu.Lock()
	if reflect.DeepEqual(w.last, cfg) {
		w.mu.Unlock()
		return
	}
	w.last = cfg
	cb := w.onChange
	w.mu.Unlock()

	logs.Infof("config reloaded: %s", w.path)
	if cb != nil {
		cb(cfg)
	}
}
