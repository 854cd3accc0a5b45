// Package notify watches for out-of-band stop signals during a run.
// A stop file dropped into the signals directory cancels the run context,
// so long tasks can be aborted without killing the process.
package notify

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StopWatcher cancels a context when a stop file appears.
type StopWatcher struct {
	signalsDir string

	mu      sync.RWMutex
	stopped bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewStopWatcher creates a watcher over dir/.agentmesh/signals. The
// directory is created if missing. If the filesystem watcher cannot be
// initialized the watcher degrades to polling.
func NewStopWatcher(dir string) (*StopWatcher, error) {
	signalsDir := filepath.Join(dir, ".agentmesh", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	sw := &StopWatcher{
		signalsDir: signalsDir,
		done:       make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sw, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return sw, nil
	}
	sw.watcher = watcher
	go sw.watchSignals()

	return sw, nil
}

// watchSignals monitors the signals directory for a stop file.
func (sw *StopWatcher) watchSignals() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if base == "stop" && (event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				sw.mu.Lock()
				sw.stopped = true
				sw.mu.Unlock()
			}
		case <-sw.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// Stopped reports whether a stop signal has been seen. Falls back to a
// direct stat so a stop file present before the watcher started still
// counts.
func (sw *StopWatcher) Stopped() bool {
	sw.mu.RLock()
	stopped := sw.stopped
	sw.mu.RUnlock()
	if stopped {
		return true
	}

	if _, err := os.Stat(filepath.Join(sw.signalsDir, "stop")); err == nil {
		sw.mu.Lock()
		sw.stopped = true
		sw.mu.Unlock()
		return true
	}
	return false
}

// Bind returns a context cancelled when a stop signal arrives, checked at
// the given interval. The returned cancel releases the checking goroutine
// and must be called.
func (sw *StopWatcher) Bind(ctx context.Context, interval time.Duration) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-bound.Done():
				return
			case <-ticker.C:
				if sw.Stopped() {
					cancel()
					return
				}
			}
		}
	}()
	return bound, cancel
}

// Clear removes a previously written stop file so the next run starts
// clean.
func (sw *StopWatcher) Clear() error {
	sw.mu.Lock()
	sw.stopped = false
	sw.mu.Unlock()

	err := os.Remove(filepath.Join(sw.signalsDir, "stop"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close stops watching.
func (sw *StopWatcher) Close() {
	sw.once.Do(func() {
		close(sw.done)
		if sw.watcher != nil {
			sw.watcher.Close()
		}
	})
}
