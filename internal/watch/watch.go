package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/amber/internal/scan"
)

// DefaultDebounce is the quiet period after the last event before a rescan
// runs. Editors often trigger several writes per save.
const DefaultDebounce = 500 * time.Millisecond

// Config bundles the watcher inputs.
type Config struct {
	Root         string
	SnapshotPath string
	Scanner      *scan.Scanner
	Options      scan.Options
	Debounce     time.Duration
	OnScan       func(scan.Snapshot) // called after each snapshot write
	Log          *zap.Logger
}

// Watcher rescans the repository after file changes and keeps the scan
// snapshot on disk fresh. A burst of events coalesces into one rescan.
type Watcher struct {
	root     string
	snapshot string
	scanner  *scan.Scanner
	opts     scan.Options
	debounce time.Duration
	onScan   func(scan.Snapshot)
	log      *zap.Logger

	fw *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New creates a Watcher; Run starts it.
func New(cfg Config) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Watcher{
		root:     cfg.Root,
		snapshot: cfg.SnapshotPath,
		scanner:  cfg.Scanner,
		opts:     cfg.Options,
		debounce: cfg.Debounce,
		onScan:   cfg.OnScan,
		log:      cfg.Log,
		fw:       fw,
	}, nil
}

// Run seeds the snapshot with an initial scan, then blocks dispatching
// events until ctx is done. Returns nil on a clean shutdown.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("registering watch dirs: %w", err)
	}
	defer w.fw.Close()

	w.rescan()

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// New directories join the watch set immediately
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !scan.SkipDir(filepath.Base(event.Name)) {
				_ = w.addRecursive(event.Name)
			}
		}
	}

	if w.ignored(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.log.Debug("change detected",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()))
	w.schedule()
}

// schedule arms the debounce timer; every event pushes the deadline out by
// the full interval, so a burst settles into a single rescan.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.rescan)
		return
	}
	w.timer.Reset(w.debounce)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// rescan runs the scanner and rewrites the snapshot. Failures are logged
// and the watch keeps running; the next change tries again.
func (w *Watcher) rescan() {
	entries, err := w.scanner.Scan(w.opts)
	if err != nil {
		w.log.Warn("rescan failed", zap.Error(err))
		return
	}
	snap := scan.Snapshot{ScannedAt: time.Now(), Root: w.root, Files: entries}
	if err := scan.SaveSnapshot(w.snapshot, snap); err != nil {
		w.log.Warn("snapshot write failed", zap.Error(err))
		return
	}
	w.log.Info("snapshot refreshed", zap.Int("files", len(entries)))
	if w.onScan != nil {
		w.onScan(snap)
	}
}

// addRecursive registers dir and every non-ignored directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && scan.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if aerr := w.fw.Add(path); aerr != nil {
			w.log.Debug("cannot watch directory", zap.String("path", path), zap.Error(aerr))
		}
		return nil
	})
}

// ignored reports whether a change at path lives under a skipped directory.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if scan.SkipDir(part) {
			return true
		}
	}
	return false
}
