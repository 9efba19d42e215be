package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/amber/internal/bundle"
	"github.com/dshills/amber/internal/cache"
	"github.com/dshills/amber/internal/classify"
	"github.com/dshills/amber/internal/stale"
)

var (
	kindOrder   = []classify.Kind{classify.KindText, classify.KindImage, classify.KindPDF}
	reasonOrder = []stale.Reason{stale.ReasonOutdated, stale.ReasonUnused, stale.ReasonHistorical}
)

func textBundle(w io.Writer, b *bundle.Bundle) error {
	ew := &errWriter{w: w}

	ew.printf("Context bundle — %d files, %s\n", b.Summary.FileCount, humanBytes(b.Summary.TotalBytes))
	ew.println(strings.Repeat("─", 60))
	for _, kind := range kindOrder {
		if n := b.Summary.ByCategory[kind]; n > 0 {
			ew.printf("  %-6s %d\n", kind, n)
		}
	}
	ew.printf("Cacheable units: %d (ttl %ds)\n", len(b.CacheHints.Hashes), b.CacheHints.TTLSeconds)

	if len(b.TextUnits) > 0 {
		ew.println("\nText units:")
		for _, u := range b.TextUnits {
			ew.printf("  %.12s  %s\n", u.Hash, strings.Join(u.Paths, ", "))
		}
	}
	if len(b.MediaUnits) > 0 {
		ew.println("\nMedia units:")
		for _, u := range b.MediaUnits {
			ew.printf("  %.12s  %s (%s, %s)\n",
				u.Hash, strings.Join(u.Paths, ", "), u.MediaType, humanBytes(u.Size))
		}
	}

	return ew.err
}

func textCleanup(w io.Writer, r *stale.Report) error {
	ew := &errWriter{w: w}

	mode := "marked"
	if r.DryRun {
		mode = "dry-run"
	}
	ew.printf("Cache cleanup — %s, max age %d days\n", mode, r.MaxAgeDays)
	ew.println(strings.Repeat("─", 60))

	if len(r.Candidates) == 0 {
		ew.println("Nothing stale. Cache is current.")
		return ew.err
	}

	ew.printf("Stale: %d records, %s\n", len(r.Candidates), humanBytes(r.BytesMarked))

	grouped := make(map[stale.Reason][]stale.Candidate)
	for _, c := range r.Candidates {
		grouped[c.Reason] = append(grouped[c.Reason], c)
	}
	for _, reason := range reasonOrder {
		cands := grouped[reason]
		if len(cands) == 0 {
			continue
		}

		ew.printf("\n%s (%d)\n", strings.ToUpper(string(reason)), len(cands))
		ew.println(strings.Repeat("─", 40))
		for _, c := range cands {
			ew.printf("  %.12s  %s\n", c.Hash, c.Path)
			ew.printf("    %s, %d days old, sent %d times, %s\n",
				c.Category, c.AgeDays, c.SentCount, humanBytes(c.SizeBytes))
			if c.Commit != "" {
				ew.printf("    last seen in commit %.12s\n", c.Commit)
			}
		}
	}

	if len(r.Recommendations) > 0 {
		ew.println("\nRecommendations:")
		for _, rec := range r.Recommendations {
			ew.printf("  - %s\n", rec)
		}
	}

	if !r.DryRun {
		ew.printf("\nMarked %d records for cleanup.\n", r.MarkedCount)
	}

	return ew.err
}

func textStats(w io.Writer, r *cache.StatsReport) error {
	ew := &errWriter{w: w}

	ew.println("Cache statistics")
	ew.println(strings.Repeat("─", 60))
	ew.printf("Records: %d total (%d active, %d cleaned, %d deleted)\n",
		r.TotalRecords, r.ActiveRecords, r.CleanedRecords, r.DeletedRecords)
	ew.printf("Active content: %s\n", humanBytes(r.ActiveBytes))
	for _, kind := range kindOrder {
		if n := r.ByCategory[kind]; n > 0 {
			ew.printf("  %-6s %d\n", kind, n)
		}
	}
	ew.printf("Sessions: %d\n", r.Sessions)
	ew.printf("Lifetime sent: %d files, %s\n",
		r.Stats.TotalFilesSent, humanBytes(r.Stats.TotalBytesSent))
	ew.printf("Cache savings: %s\n", humanBytes(r.Stats.CacheSavingsBytes))
	if r.LastCleanupAt != nil {
		ew.printf("Last cleanup: %s\n", r.LastCleanupAt.Format(time.RFC3339))
	}

	return ew.err
}

func textList(w io.Writer, entries []cache.ListEntry) error {
	ew := &errWriter{w: w}

	if len(entries) == 0 {
		ew.println("Cache index is empty.")
		return ew.err
	}

	ew.printf("%-14s %-7s %9s %5s  %s\n", "HASH", "KIND", "SIZE", "SENT", "PATH")
	for _, e := range entries {
		ew.printf("%-14.12s %-7s %9s %5d  %s\n",
			e.Hash, e.Record.Category, humanBytes(e.Record.SizeBytes),
			e.Record.SentCount, e.Record.Path)
	}
	ew.printf("\n%d records\n", len(entries))

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
