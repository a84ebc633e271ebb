// Package watcher reports filesystem changes under a scanned root.
package watcher

import (
	"sync"
	"time"
)

// EventType represents the type of filesystem event
type EventType int

const (
	EventDeleted EventType = iota
	EventCreated
	EventModified
)

// String returns a human-readable event type
func (t EventType) String() string {
	switch t {
	case EventDeleted:
		return "deleted"
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	default:
		return ""
	}
}

// Event represents a filesystem change event
type Event struct {
	Type EventType
	Path string
}

// DefaultDebounceDuration is the default debounce window
const DefaultDebounceDuration = 500 * time.Millisecond

// Debouncer coalesces rapid events into a single callback invocation
// Only the callback of the last Trigger within the window runs.
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	seq      uint64
}

// NewDebouncer creates a new Debouncer; zero selects DefaultDebounceDuration
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration == 0 {
		duration = DefaultDebounceDuration
	}
	return &Debouncer{duration: duration}
}

// Trigger schedules callback after the debounce duration, replacing any pending one
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		// a timer that fired while being replaced must not run
		if seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		callback()
	})
}

// Cancel cancels any pending callback
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Duration returns the debounce duration
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}

// OnChange watches root and calls fn once per burst of changes
// The returned stop function releases the watcher.
func OnChange(root string, window time.Duration, fn func(Event)) (stop func() error, err error) {
	w, err := New()
	if err != nil {
		return nil, err
	}
	if err := w.AddRecursive(root); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.Start()

	deb := NewDebouncer(window)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range w.Events() {
			ev := ev
			deb.Trigger(func() { fn(ev) })
		}
	}()

	return func() error {
		deb.Cancel()
		err := w.Stop()
		<-done
		deb.Cancel()
		return err
	}, nil
}
