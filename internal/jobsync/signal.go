package jobsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchSignal calls fn whenever the marker file at path is created, written
// or replaced. Bursts within debounce are coalesced into one call. The parent
// directory is watched so atomic renames onto path are seen too.
func WatchSignal(ctx context.Context, path string, debounce time.Duration, fn func()) (func(), error) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create signal dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer w.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != path || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if debounce <= 0 {
					fn()
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, fn)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).WithField("path", path).Warn("signal watcher error")
			}
		}
	}()

	logrus.WithField("path", path).Info("watching sync signal")
	return func() {
		cancel()
		<-done
	}, nil
}

// WatchSignal refreshes the list when the marker file changes. The watcher
// is stopped by Close.
func (l *JobList) WatchSignal(path string, debounce time.Duration) error {
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	stop, err := WatchSignal(ctx, path, debounce, l.Trigger)
	if err != nil {
		return err
	}
	l.addStop(stop)
	return nil
}
