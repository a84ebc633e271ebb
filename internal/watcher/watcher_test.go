package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls, last int32
	done := make(chan struct{}, 10)

	for i := int32(1); i <= 5; i++ {
		i := i
		d.Trigger(func() {
			atomic.AddInt32(&calls, 1)
			atomic.StoreInt32(&last, i)
			done <- struct{}{}
		})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}
	time.Sleep(60 * time.Millisecond)

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
	if v := atomic.LoadInt32(&last); v != 5 {
		t.Errorf("expected the last trigger to win, got %d", v)
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	d.Cancel()
	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("canceled callback ran %d times", n)
	}
	if NewDebouncer(0).Duration() != DefaultDebounceDuration {
		t.Error("zero duration should select the default")
	}
}

func TestOnChange(t *testing.T) {
	tmp := t.TempDir()
	os.MkdirAll(filepath.Join(tmp, "sub"), 0755)

	got := make(chan Event, 10)
	stop, err := OnChange(tmp, 20*time.Millisecond, func(ev Event) { got <- ev })
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer stop()

	// give platform watchers a moment to arm
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(tmp, "sub", "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		t.Logf("event %s %s", ev.Type, ev.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	if err := stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
}
