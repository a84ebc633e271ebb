//go:build !darwin

package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"

	"github.com/lumipallolabs/facetmap/internal/logging"
)

// Watcher watches for filesystem changes using fsnotify
// fsnotify watches single directories, so every directory below the root is added
// and new directories are picked up as they appear.
type Watcher struct {
	fs      *fsnotify.Watcher
	eventCh chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// New creates a new filesystem watcher
func New() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fs:      fw,
		eventCh: make(chan Event, 100),
		done:    make(chan struct{}),
	}, nil
}

// Events returns the channel for receiving filesystem events
func (w *Watcher) Events() <-chan Event {
	return w.eventCh
}

// AddRecursive watches root and every directory below it
// Only a failure on root itself is returned; subdirectories that cannot be
// watched are skipped.
func (w *Watcher) AddRecursive(root string) error {
	root = filepath.Clean(root)
	if err := w.fs.Add(root); err != nil {
		return err
	}

	var mu sync.Mutex
	var skipped []string
	conf := &fastwalk.Config{Follow: false}
	err := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if filepath.Clean(path) == root {
			return nil
		}
		if err == nil && !d.IsDir() {
			return nil
		}
		if err == nil {
			err = w.fs.Add(path)
		}
		if err != nil {
			mu.Lock()
			skipped = append(skipped, path)
			mu.Unlock()
			logging.Debug.Debugf("Watcher: skip %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
		}
		return nil
	})
	if len(skipped) > 0 {
		logging.Debug.Debugf("Watcher: %d directories not watched under %s", len(skipped), root)
	}
	return err
}

// Start begins delivering events
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Debug.Debugf("Watcher: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var t EventType
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		t = EventDeleted
	case event.Has(fsnotify.Create):
		t = EventCreated
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = w.AddRecursive(event.Name)
		}
	case event.Has(fsnotify.Write), event.Has(fsnotify.Chmod):
		t = EventModified
	default:
		return
	}

	select {
	case w.eventCh <- Event{Type: t, Path: event.Name}:
	default:
	}
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	close(w.eventCh)
	return err
}
