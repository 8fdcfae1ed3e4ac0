// Package watcher with a debounced file watcher for configuration reloads
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the quiet period after the last change before the handler is invoked
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher invokes a handler when a file changes.
// Multiple quick changes result in a single invocation. The directory of the file is
// watched so that editors that replace the file by renaming are handled.
type FileWatcher struct {
	path     string
	handler  func() error
	watcher  *fsnotify.Watcher
	timer    *time.Timer
	debounce time.Duration
	closeMu  sync.Mutex
	closed   bool
}

func (fw *FileWatcher) run() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			logrus.Debugf("FileWatcher.run: event %s on %s", event.Op, event.Name)
			fw.timer.Reset(fw.debounce)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logrus.Errorf("FileWatcher.run: Error: %s", err)
		}
	}
}

func (fw *FileWatcher) onTimer() {
	fw.closeMu.Lock()
	closed := fw.closed
	fw.closeMu.Unlock()
	if closed {
		return
	}
	logrus.Infof("FileWatcher.onTimer: %s changed", fw.path)
	if err := fw.handler(); err != nil {
		logrus.Errorf("FileWatcher.onTimer: handler of %s failed: %s", fw.path, err)
	}
}

// Close stops watching
func (fw *FileWatcher) Close() error {
	fw.closeMu.Lock()
	fw.closed = true
	fw.closeMu.Unlock()
	fw.timer.Stop()
	return fw.watcher.Close()
}

// WatchFile watches a file for changes
//  path to watch
//  debounce period, 0 for the default
//  handler to invoke after the file changed
// Returns the watcher. Close it when done.
func WatchFile(path string, debounce time.Duration, handler func() error) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &FileWatcher{
		path:     filepath.Clean(path),
		handler:  handler,
		watcher:  watcher,
		debounce: debounce,
	}
	fw.timer = time.AfterFunc(debounce, fw.onTimer)
	fw.timer.Stop()

	err = watcher.Add(filepath.Dir(fw.path))
	if err != nil {
		logrus.Errorf("WatchFile: unable to watch %s for changes: %s", path, err)
		watcher.Close()
		return nil, err
	}
	go fw.run()
	return fw, nil
}
