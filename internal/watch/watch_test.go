package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/amber/internal/scan"
)

func waitForSnapshot(ch <-chan scan.Snapshot, timeout time.Duration) (scan.Snapshot, bool) {
	select {
	case snap := <-ch:
		return snap, true
	case <-time.After(timeout):
		return scan.Snapshot{}, false
	}
}

func TestWatcher_InitialScanAndChange(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	scans := make(chan scan.Snapshot, 10)
	w, err := New(Config{
		Root:         dir,
		SnapshotPath: filepath.Join(dir, ".amber", "scan.json"),
		Scanner:      scan.New(dir, nil, nil),
		Debounce:     50 * time.Millisecond,
		OnScan:       func(s scan.Snapshot) { scans <- s },
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Run seeds a snapshot before watching
	snap, ok := waitForSnapshot(scans, 2*time.Second)
	if !ok {
		t.Fatal("no initial scan")
	}
	if len(snap.Files) != 1 || snap.Files[0].Path != "main.go" {
		t.Fatalf("initial snapshot = %+v", snap.Files)
	}

	if err := os.WriteFile(filepath.Join(dir, "util.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	snap, ok = waitForSnapshot(scans, 5*time.Second)
	if !ok {
		t.Fatal("no rescan after change")
	}
	if len(snap.Files) != 2 {
		t.Fatalf("got %d files after change, want 2", len(snap.Files))
	}

	if _, err := scan.LoadSnapshot(filepath.Join(dir, ".amber", "scan.json")); err != nil {
		t.Fatalf("snapshot not on disk: %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}
}

func TestWatcher_DebounceCoalesces(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	scans := make(chan scan.Snapshot, 10)
	w, err := New(Config{
		Root:         dir,
		SnapshotPath: filepath.Join(dir, ".amber", "scan.json"),
		Scanner:      scan.New(dir, nil, nil),
		Debounce:     100 * time.Millisecond,
		OnScan:       func(s scan.Snapshot) { scans <- s },
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer w.fw.Close()

	// Drive the debounce directly: a burst of schedules must produce
	// exactly one rescan once the timer settles.
	for i := 0; i < 10; i++ {
		w.schedule()
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := waitForSnapshot(scans, 2*time.Second); !ok {
		t.Fatal("no rescan after burst")
	}
	select {
	case <-scans:
		t.Fatal("burst produced more than one rescan")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_ScheduleAfterStop(t *testing.T) {
	dir := t.TempDir()

	scans := make(chan scan.Snapshot, 10)
	w, err := New(Config{
		Root:         dir,
		SnapshotPath: filepath.Join(dir, ".amber", "scan.json"),
		Scanner:      scan.New(dir, nil, nil),
		Debounce:     20 * time.Millisecond,
		OnScan:       func(s scan.Snapshot) { scans <- s },
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer w.fw.Close()

	w.stop()
	w.schedule()

	if _, ok := waitForSnapshot(scans, 200*time.Millisecond); ok {
		t.Fatal("rescan fired after stop")
	}
}

func TestWatcher_IgnoredPaths(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{
		Root:         dir,
		SnapshotPath: filepath.Join(dir, ".amber", "scan.json"),
		Scanner:      scan.New(dir, nil, nil),
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer w.fw.Close()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, ".git", "HEAD"), true},
		{filepath.Join(dir, ".amber", "scan.json"), true},
		{filepath.Join(dir, "node_modules", "left-pad", "index.js"), true},
		{filepath.Join(dir, "src", "main.go"), false},
		{filepath.Join(dir, "README.md"), false},
	}
	for _, tt := range tests {
		if got := w.ignored(tt.path); got != tt.want {
			t.Errorf("ignored(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
