package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dshills/amber/internal/bundle"
	"github.com/dshills/amber/internal/cache"
	"github.com/dshills/amber/internal/classify"
	"github.com/dshills/amber/internal/stale"
)

func sampleBundle() *bundle.Bundle {
	return &bundle.Bundle{
		SystemContext: "=== main.go (d670460b4b4a) ===\npackage main\n",
		TextUnits: []bundle.TextUnit{
			{Hash: "d670460b4b4aece5915caf5c68d12f560a9fe3e4", Paths: []string{"main.go"}, Content: "package main\n", Size: 13},
		},
		MediaUnits: []bundle.MediaUnit{
			{Hash: "aaaa460b4b4aece5915caf5c68d12f560a9fe3e4", Paths: []string{"logo.png"}, Data: "aW1n", MediaType: "image/png", Size: 2048},
		},
		CacheHints: bundle.CacheHints{
			Hashes:     []string{"d670460b4b4aece5915caf5c68d12f560a9fe3e4", "aaaa460b4b4aece5915caf5c68d12f560a9fe3e4"},
			TTLSeconds: 3600,
		},
		Summary: bundle.Summary{
			FileCount:  2,
			ByCategory: map[classify.Kind]int{classify.KindText: 1, classify.KindImage: 1},
			TotalBytes: 2061,
		},
	}
}

func sampleCleanup(dryRun bool) *stale.Report {
	return &stale.Report{
		GeneratedAt: time.Now(),
		MaxAgeDays:  30,
		DryRun:      dryRun,
		Candidates: []stale.Candidate{
			{
				Hash:      "d670460b4b4aece5915caf5c68d12f560a9fe3e4",
				Path:      "old/removed.go",
				Category:  classify.KindText,
				Reason:    stale.ReasonOutdated,
				AgeDays:   45,
				SentCount: 3,
				SizeBytes: 512,
			},
			{
				Hash:      "bbbb460b4b4aece5915caf5c68d12f560a9fe3e4",
				Path:      "legacy/ancient.go",
				Category:  classify.KindText,
				Reason:    stale.ReasonHistorical,
				AgeDays:   200,
				SentCount: 1,
				SizeBytes: 1024,
				Commit:    "cccc460b4b4aece5915caf5c68d12f560a9fe3e4",
			},
		},
		CountsByReason: map[stale.Reason]int{stale.ReasonOutdated: 1, stale.ReasonHistorical: 1},
		CountsByKind:   map[classify.Kind]int{classify.KindText: 2},
		BytesMarked:    1536,
		MarkedCount:    2,
	}
}

func TestTextBundle(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBundle(&buf, FormatText, sampleBundle()); err != nil {
		t.Fatalf("WriteBundle error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "2 files") {
		t.Error("Output should show file count")
	}
	if !strings.Contains(out, "d670460b4b4a") {
		t.Error("Output should show the hash prefix")
	}
	if !strings.Contains(out, "main.go") {
		t.Error("Output should list text unit paths")
	}
	if !strings.Contains(out, "image/png") {
		t.Error("Output should show media type")
	}
	if !strings.Contains(out, "ttl 3600s") {
		t.Error("Output should show the cache hint TTL")
	}
}

func TestTextCleanup(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCleanup(&buf, FormatText, sampleCleanup(false)); err != nil {
		t.Fatalf("WriteCleanup error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "OUTDATED (1)") {
		t.Error("Output should have OUTDATED section")
	}
	if !strings.Contains(out, "HISTORICAL (1)") {
		t.Error("Output should have HISTORICAL section")
	}
	if !strings.Contains(out, "old/removed.go") {
		t.Error("Output should contain candidate path")
	}
	if !strings.Contains(out, "last seen in commit cccc460b4b4a") {
		t.Error("Output should show commit evidence")
	}
	if !strings.Contains(out, "Marked 2 records") {
		t.Error("Output should report the marked count")
	}
}

func TestTextCleanup_DryRun(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCleanup(&buf, FormatText, sampleCleanup(true)); err != nil {
		t.Fatalf("WriteCleanup error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "dry-run") {
		t.Error("Output should mention dry-run mode")
	}
	if strings.Contains(out, "Marked 2 records") {
		t.Error("Dry run should not report a marked count")
	}
}

func TestTextCleanup_Empty(t *testing.T) {
	rep := &stale.Report{
		MaxAgeDays:     30,
		CountsByReason: map[stale.Reason]int{},
		CountsByKind:   map[classify.Kind]int{},
	}

	var buf bytes.Buffer
	if err := WriteCleanup(&buf, FormatText, rep); err != nil {
		t.Fatalf("WriteCleanup error: %v", err)
	}
	if !strings.Contains(buf.String(), "Nothing stale") {
		t.Error("Output should say nothing is stale")
	}
}

func TestTextStats(t *testing.T) {
	cleanedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rep := &cache.StatsReport{
		Stats:          cache.Stats{TotalFilesSent: 42, TotalBytesSent: 100000, CacheSavingsBytes: 35000},
		TotalRecords:   12,
		ActiveRecords:  9,
		CleanedRecords: 2,
		DeletedRecords: 1,
		ActiveBytes:    90000,
		ByCategory:     map[classify.Kind]int{classify.KindText: 8, classify.KindImage: 1},
		Sessions:       4,
		LastCleanupAt:  &cleanedAt,
	}

	var buf bytes.Buffer
	if err := WriteStats(&buf, FormatText, rep); err != nil {
		t.Fatalf("WriteStats error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "12 total (9 active, 2 cleaned, 1 deleted)") {
		t.Error("Output should break down record states")
	}
	if !strings.Contains(out, "42 files") {
		t.Error("Output should show lifetime file count")
	}
	if !strings.Contains(out, "Cache savings") {
		t.Error("Output should show savings")
	}
	if !strings.Contains(out, "2025-06-01") {
		t.Error("Output should show last cleanup time")
	}
}

func TestTextList(t *testing.T) {
	entries := []cache.ListEntry{
		{
			Hash: "d670460b4b4aece5915caf5c68d12f560a9fe3e4",
			Record: cache.Record{
				Path:      "main.go",
				Category:  classify.KindText,
				SentCount: 3,
				SizeBytes: 13,
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteList(&buf, FormatText, entries); err != nil {
		t.Fatalf("WriteList error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "HASH") {
		t.Error("Output should have a header row")
	}
	if !strings.Contains(out, "d670460b4b4a") {
		t.Error("Output should show hash prefixes")
	}
	if !strings.Contains(out, "1 records") {
		t.Error("Output should show the total")
	}
}

func TestTextList_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteList(&buf, FormatText, nil); err != nil {
		t.Fatalf("WriteList error: %v", err)
	}
	if !strings.Contains(buf.String(), "empty") {
		t.Error("Output should say the index is empty")
	}
}

func TestUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStats(&buf, "sarif", &cache.StatsReport{}); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if err := WriteBundle(&buf, "markdown", sampleBundle()); err == nil {
		t.Error("Expected error for bundle markdown")
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 << 20, "3.0 MiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.n); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
