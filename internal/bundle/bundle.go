package bundle

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/amber/internal/blobhash"
	"github.com/dshills/amber/internal/classify"
	"github.com/dshills/amber/internal/redact"
	"github.com/dshills/amber/internal/scan"
)

const (
	// DefaultMaxLines caps inlined text per file.
	DefaultMaxLines = 400
	// DefaultTTLSeconds is the cache-hint TTL when none is configured.
	DefaultTTLSeconds = 3600
	// maxConcurrency limits parallel content loads.
	maxConcurrency = 4
	// hashPrefixLen is the hash prefix length in system-context headers.
	hashPrefixLen = 12
)

// Loader reads file bytes for a scanned path.
type Loader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// DirLoader loads files from a local directory root.
type DirLoader struct {
	Root string
}

func (d DirLoader) Load(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(path)))
}

// Options configure a build.
type Options struct {
	MaxLines      int
	TTLSeconds    int
	RedactSecrets bool
	RedactPaths   []string
}

// TextUnit is one deduplicated text file inlined into the bundle.
type TextUnit struct {
	Hash    string   `json:"hash"`
	Paths   []string `json:"paths"`
	Content string   `json:"content"`
	Size    int64    `json:"sizeBytes"`
}

// MediaUnit is one deduplicated image or PDF, base64-encoded.
type MediaUnit struct {
	Hash      string   `json:"hash"`
	Paths     []string `json:"paths"`
	Data      string   `json:"data"`
	MediaType string   `json:"mediaType"`
	Size      int64    `json:"sizeBytes"`
}

// CacheHints tells a model-call layer which units are cacheable.
type CacheHints struct {
	Hashes     []string `json:"hashes"`
	TTLSeconds int      `json:"ttlSeconds"`
}

// Summary aggregates the bundle. FileCount counts logical units, not
// input paths: duplicates collapse before counting.
type Summary struct {
	FileCount  int                   `json:"fileCount"`
	ByCategory map[classify.Kind]int `json:"byCategory"`
	TotalBytes int64                 `json:"totalBytes"`
}

// Bundle is the context payload handed to the prompt layer.
type Bundle struct {
	SystemContext string      `json:"systemContextText"`
	TextUnits     []TextUnit  `json:"textUnits"`
	MediaUnits    []MediaUnit `json:"mediaUnits"`
	CacheHints    CacheHints  `json:"cacheHints"`
	Summary       Summary     `json:"summary"`
}

// Units returns one FileEntry per logical unit, first path wins — the
// shape recordSent consumes.
func (b *Bundle) Units() []scan.FileEntry {
	units := make([]scan.FileEntry, 0, len(b.TextUnits)+len(b.MediaUnits))
	for _, u := range b.TextUnits {
		units = append(units, scan.FileEntry{Path: u.Paths[0], Hash: u.Hash, Kind: classify.KindText, Size: u.Size})
	}
	for _, u := range b.MediaUnits {
		cls := classify.Classify(u.Paths[0])
		units = append(units, scan.FileEntry{Path: u.Paths[0], Hash: u.Hash, Kind: cls.Kind, Size: u.Size})
	}
	return units
}

// Builder assembles bundles from scanned entries.
type Builder struct {
	loader Loader
	opts   Options
	log    *zap.Logger
}

// NewBuilder returns a Builder reading content through loader.
func NewBuilder(loader Loader, opts Options, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}
	if opts.TTLSeconds <= 0 {
		opts.TTLSeconds = DefaultTTLSeconds
	}
	return &Builder{loader: loader, opts: opts, log: log}
}

// group is one logical unit before its content is loaded.
type group struct {
	hash  string
	kind  classify.Kind
	size  int64
	paths []string
}

// Build groups entries by hash, loads one copy of each unit's bytes, and
// assembles the bundle. Unreadable units are logged and skipped.
func (b *Builder) Build(ctx context.Context, entries []scan.FileEntry) (*Bundle, error) {
	groups := groupByHash(entries)

	contents := make([][]byte, len(groups))
	loadErrs := make([]error, len(groups))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrency)
	for i, g := range groups {
		wg.Add(1)
		go func(i int, g *group) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			if err := ctx.Err(); err != nil {
				loadErrs[i] = err
				return
			}
			data, err := b.loader.Load(ctx, g.paths[0])
			if err != nil {
				loadErrs[i] = fmt.Errorf("loading %s: %w", g.paths[0], err)
				return
			}
			contents[i] = data
		}(i, g)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Bundle{
		Summary: Summary{ByCategory: make(map[classify.Kind]int)},
	}
	var sys strings.Builder

	for i, g := range groups {
		if loadErrs[i] != nil {
			b.log.Warn("skipping unreadable unit", zap.String("path", g.paths[0]), zap.Error(loadErrs[i]))
			continue
		}
		switch g.kind {
		case classify.KindText:
			content := string(contents[i])
			if b.opts.RedactSecrets {
				content = b.redacted(content, g.paths)
			}
			content = capLines(content, b.opts.MaxLines)
			out.TextUnits = append(out.TextUnits, TextUnit{
				Hash:    g.hash,
				Paths:   g.paths,
				Content: content,
				Size:    g.size,
			})
			fmt.Fprintf(&sys, "=== %s (%s) ===\n%s\n\n",
				strings.Join(g.paths, ", "), blobhash.Prefix(g.hash, hashPrefixLen), content)
		case classify.KindImage, classify.KindPDF:
			cls := classify.Classify(g.paths[0])
			out.MediaUnits = append(out.MediaUnits, MediaUnit{
				Hash:      g.hash,
				Paths:     g.paths,
				Data:      base64.StdEncoding.EncodeToString(contents[i]),
				MediaType: cls.MediaType,
				Size:      g.size,
			})
		default:
			continue
		}
		out.CacheHints.Hashes = append(out.CacheHints.Hashes, g.hash)
		out.Summary.FileCount++
		out.Summary.ByCategory[g.kind]++
		out.Summary.TotalBytes += g.size
	}

	out.SystemContext = sys.String()
	out.CacheHints.TTLSeconds = b.opts.TTLSeconds
	return out, nil
}

// redacted applies content redaction; a path-policy match on any of the
// unit's paths replaces the whole content.
func (b *Builder) redacted(content string, paths []string) string {
	for _, p := range paths {
		if redact.PathMatches(p, b.opts.RedactPaths) {
			return redact.Content(content, p, b.opts.RedactPaths)
		}
	}
	return redact.Secrets(content)
}

// groupByHash reduces entries to one group per hash, preserving first-seen
// order so the grouping is stable regardless of duplicate positions.
func groupByHash(entries []scan.FileEntry) []*group {
	byHash := make(map[string]*group)
	var ordered []*group
	for _, e := range entries {
		g, ok := byHash[e.Hash]
		if !ok {
			g = &group{hash: e.Hash, kind: e.Kind, size: e.Size}
			byHash[e.Hash] = g
			ordered = append(ordered, g)
		}
		g.paths = append(g.paths, e.Path)
	}
	for _, g := range ordered {
		sort.Strings(g.paths)
	}
	return ordered
}

// capLines truncates content to max lines, appending an explicit marker
// naming how many lines were dropped.
func capLines(content string, max int) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= max {
		return content
	}
	dropped := len(lines) - max
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n... [truncated %d more lines]", dropped)
}
