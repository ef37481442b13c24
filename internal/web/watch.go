package web

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	appLog "pss/internal/log"
)

const defaultDebounce = 250 * time.Millisecond

// WatchState calls onChange after the file at path is written, created or
// renamed into place, once writes have been quiet for debounce. The parent
// directory is watched so atomic temp+rename writes are seen. It returns
// when ctx is done.
func WatchState(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	dir := filepath.Dir(path)
	target := filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	appLog.Debug("state watcher started", "path", target)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	fire := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, onChange)
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
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				fire()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Warn("state watcher error", "err", err.Error())
		}
	}
}
