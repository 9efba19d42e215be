package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/amber/internal/bundle"
	"github.com/dshills/amber/internal/cache"
	"github.com/dshills/amber/internal/stale"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// To runs write against the given path, or stdout when the path is empty.
func To(outPath string, write func(io.Writer) error) error {
	if outPath == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return write(f)
}

// WriteBundle writes a built context bundle.
func WriteBundle(w io.Writer, format string, b *bundle.Bundle) error {
	switch format {
	case FormatText:
		return textBundle(w, b)
	case FormatJSON:
		return writeJSON(w, b)
	default:
		return unsupported(format)
	}
}

// WriteCleanup writes a cleanup report. Markdown is supported here so the
// report can be pasted into an issue or PR comment.
func WriteCleanup(w io.Writer, format string, r *stale.Report) error {
	switch format {
	case FormatText:
		return textCleanup(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	case FormatMarkdown:
		return markdownCleanup(w, r)
	default:
		return unsupported(format)
	}
}

// WriteStats writes the aggregate cache statistics.
func WriteStats(w io.Writer, format string, r *cache.StatsReport) error {
	switch format {
	case FormatText:
		return textStats(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	default:
		return unsupported(format)
	}
}

// WriteList writes the active cache records.
func WriteList(w io.Writer, format string, entries []cache.ListEntry) error {
	switch format {
	case FormatText:
		return textList(w, entries)
	case FormatJSON:
		return writeJSON(w, entries)
	default:
		return unsupported(format)
	}
}

func unsupported(format string) error {
	return fmt.Errorf("unsupported output format: %s", format)
}
