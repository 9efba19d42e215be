package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/amber/internal/blobhash"
	"github.com/dshills/amber/internal/classify"
	"github.com/dshills/amber/internal/gitctx"
)

// FileEntry is one scanned file, ready for context building. Ephemeral —
// the persistent record lives in the cache index, keyed by Hash.
type FileEntry struct {
	Path string        `json:"path"`
	Hash string        `json:"hash"`
	Kind classify.Kind `json:"category"`
	Size int64         `json:"sizeBytes"`
}

// Options bound a scan.
type Options struct {
	MaxFiles int
	MaxDepth int
}

// DefaultMaxDepth bounds the filesystem-walk fallback.
const DefaultMaxDepth = 8

// Directories never descended into by the walk fallback.
var skipDirs = map[string]struct{}{
	".git":             {},
	".hg":              {},
	".svn":             {},
	".amber":           {},
	"node_modules":     {},
	"bower_components": {},
	"vendor":           {},
	"dist":             {},
	"build":            {},
	"out":              {},
	"target":           {},
	"bin":              {},
	"obj":              {},
	"__pycache__":      {},
	".venv":            {},
	"venv":             {},
	".tox":             {},
	".idea":            {},
	".vscode":          {},
	".cache":           {},
	"coverage":         {},
	"tmp":              {},
}

// SkipDir reports whether a directory name is never scanned or watched.
func SkipDir(name string) bool {
	_, ok := skipDirs[name]
	return ok
}

// Scanner enumerates a repository's files.
type Scanner struct {
	root string
	git  gitctx.Inspector
	log  *zap.Logger
}

// New returns a Scanner rooted at dir. A nil inspector disables the
// tracked-listing strategy.
func New(dir string, git gitctx.Inspector, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{root: dir, git: git, log: log}
}

// Scan enumerates eligible files, ranked by importance and truncated to
// opts.MaxFiles. The tracked listing is preferred; when it is unavailable
// or empty the scanner falls back to walking the filesystem.
func (s *Scanner) Scan(opts Options) ([]FileEntry, error) {
	entries := s.tracked()
	if entries == nil {
		walked, err := s.walk(opts)
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", s.root, err)
		}
		entries = walked
	}
	Rank(entries)
	return Truncate(entries, opts.MaxFiles), nil
}

// tracked returns classified entries from the git listing, or nil when the
// listing is unavailable or empty and the walk should run instead.
func (s *Scanner) tracked() []FileEntry {
	if s.git == nil {
		return nil
	}
	files, err := s.git.ListTracked()
	if err != nil {
		s.log.Debug("tracked listing unavailable, falling back to walk", zap.Error(err))
		return nil
	}
	if len(files) == 0 {
		return nil
	}
	return FromTracked(files)
}

// Hashes collapses entries into a hash set, the shape the staleness
// detector consumes as the current snapshot.
func Hashes(entries []FileEntry) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[e.Hash] = true
	}
	return set
}

// FromTracked converts a tracked listing to FileEntry records, applying the
// classifier filter and per-kind size ceilings. Also used for remote trees.
func FromTracked(files []gitctx.TrackedFile) []FileEntry {
	entries := make([]FileEntry, 0, len(files))
	for _, f := range files {
		cls := classify.Classify(f.Path)
		if cls.Kind == classify.KindBinary {
			continue
		}
		if f.Size > cls.MaxBytes {
			continue
		}
		entries = append(entries, FileEntry{Path: f.Path, Hash: f.Hash, Kind: cls.Kind, Size: f.Size})
	}
	return entries
}

func (s *Scanner) walk(opts Options) ([]FileEntry, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var entries []FileEntry
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, rerr := filepath.Rel(s.root, path)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			if strings.Count(rel, "/")+1 >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		cls := classify.Classify(rel)
		if cls.Kind == classify.KindBinary {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		if info.Size() > cls.MaxBytes {
			return nil
		}
		data, rerr2 := os.ReadFile(path)
		if rerr2 != nil {
			s.log.Debug("skipping unreadable file", zap.String("path", rel), zap.Error(rerr2))
			return nil
		}
		entries = append(entries, FileEntry{
			Path: rel,
			Hash: blobhash.Sum(data),
			Kind: cls.Kind,
			Size: int64(len(data)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
