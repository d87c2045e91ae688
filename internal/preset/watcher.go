package preset

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay debounces bursts of file events into one reload.
const reloadDelay = 200 * time.Millisecond

// ChangeCallback is called after a watcher-driven reload with the names of
// the preset files that triggered it.
type ChangeCallback func(names []string)

// Watch reloads l whenever a preset file under dir changes, until ctx is
// cancelled.
func (l *Library) Watch(ctx context.Context, dir string, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	l.logger.Info("preset watcher: started", slog.String("dir", dir))

	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := map[string]struct{}{}

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDelay)
			timerCh = timer.C
		} else {
			timer.Reset(reloadDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			l.logger.Info("preset watcher: stopped")
			return nil

		case <-timerCh:
			if err := l.Reload(); err != nil {
				l.logger.Warn("preset watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			names := make([]string, 0, len(pending))
			for n := range pending {
				names = append(names, n)
			}
			pending = map[string]struct{}{}
			if cb != nil {
				cb(names)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(ev.Name)
			if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, FileExt) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[strings.TrimSuffix(base, FileExt)] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("preset watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
