package handshake

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

var ErrWatcherFailed = errors.New("failed to initialize deletion watcher")

// DeletionWatcher signals when a watched file is removed or renamed away.
type DeletionWatcher struct {
	target  string
	watcher *fsnotify.Watcher
	removed chan struct{}
	stop    chan struct{}
}

// WatchDeletion watches the parent directory of path; watching the file
// itself would lose the watch when the controller deletes it.
func WatchDeletion(path string) (*DeletionWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	d := &DeletionWatcher{
		target:  filepath.Clean(path),
		watcher: w,
		removed: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	go d.processEvents()
	return d, nil
}

func (d *DeletionWatcher) Removed() <-chan struct{} { return d.removed }

func (d *DeletionWatcher) Stop() {
	select {
	case <-d.stop:
		return
	default:
		close(d.stop)
		_ = d.watcher.Close()
	}
}

func (d *DeletionWatcher) processEvents() {
	for {
		select {
		case <-d.stop:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != d.target {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				select {
				case d.removed <- struct{}{}:
				default:
				}
			}
		case _, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
