//go:build !darwin

package watcher

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestAddRecursiveSkipsUnreadableDirs(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs unix permissions enforced")
	}
	tmp := t.TempDir()
	open := filepath.Join(tmp, "open")
	locked := filepath.Join(tmp, "locked")
	for _, dir := range []string{open, filepath.Join(locked, "inner")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddRecursive(tmp); err != nil {
		t.Fatalf("one unreadable directory should not fail the watch: %v", err)
	}
	watched := map[string]bool{}
	for _, p := range w.fs.WatchList() {
		watched[filepath.Clean(p)] = true
	}
	if !watched[filepath.Clean(tmp)] || !watched[open] {
		t.Errorf("root and readable dirs should be watched, got %v", w.fs.WatchList())
	}
}

func TestAddRecursiveMissingRoot(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddRecursive(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing root")
	}
}
