package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceWindow is the filesystem-change debounce window before a reload
// is signalled, spec.md §6.
const DebounceWindow = 333 * time.Millisecond

// Watcher signals on Changed whenever the watched config file is created,
// written, or renamed into place, debounced by DebounceWindow. Grounded on
// fsnotify (present unused in the teacher's go.mod) the way a file-watching
// config reloader conventionally uses it.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string

	Changed chan struct{}
	Errors  chan error

	stop chan struct{}
}

// NewWatcher watches the parent directory of path (so the watch survives
// editors that replace the file via rename) and debounces change
// notifications for that specific file.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()

		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher: fw,
		path:    filepath.Clean(path),
		Changed: make(chan struct{}, 1),
		Errors:  make(chan error, 1),
		stop:    make(chan struct{}),
	}

	go w.run()

	return w, nil
}

func (w *Watcher) run() {
	var timer *time.Timer

	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}

			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				continue
			}

			if timer == nil {
				timer = time.AfterFunc(DebounceWindow, w.notify)
			} else {
				timer.Reset(DebounceWindow)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.Changed <- struct{}{}:
	default:
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("config: close watcher: %w", err)
	}

	return nil
}
