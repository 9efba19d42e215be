package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/amber/internal/classify"
)

func sampleIndex() *Index {
	idx := NewIndex()
	cleaned := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	idx.Files["aaaa000000000000000000000000000000000000"] = &Record{
		Path:      "main.go",
		Category:  classify.KindText,
		FirstSent: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		LastSent:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		SentCount: 4,
		SizeBytes: 123,
	}
	idx.Files["bbbb000000000000000000000000000000000000"] = &Record{
		Path:        "gone.md",
		Category:    classify.KindText,
		SentCount:   1,
		CleanedAt:   &cleaned,
		CleanReason: "outdated",
	}
	idx.Sessions["s1"] = &Session{
		StartTime: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Files: []SessionFile{
			{Hash: "aaaa000000000000000000000000000000000000", Path: "main.go", WasCacheHit: true},
		},
		Stats: SessionStats{FilesSent: 1, BytesSent: 123, CacheHits: 1},
	}
	idx.Stats = Stats{TotalFilesSent: 5, TotalBytesSent: 615, CacheSavingsBytes: 492}
	return idx
}

func indexesEqual(t *testing.T, got, want *Index) {
	t.Helper()
	if got.SchemaVersion != want.SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", got.SchemaVersion, want.SchemaVersion)
	}
	if got.Stats != want.Stats {
		t.Errorf("Stats = %+v, want %+v", got.Stats, want.Stats)
	}
	if len(got.Files) != len(want.Files) {
		t.Fatalf("Files = %d records, want %d", len(got.Files), len(want.Files))
	}
	for hash, w := range want.Files {
		g, ok := got.Files[hash]
		if !ok {
			t.Errorf("record %s missing", hash)
			continue
		}
		if g.Path != w.Path || g.SentCount != w.SentCount || g.CleanReason != w.CleanReason {
			t.Errorf("record %s = %+v, want %+v", hash, g, w)
		}
	}
	if len(got.Sessions) != len(want.Sessions) {
		t.Fatalf("Sessions = %d, want %d", len(got.Sessions), len(want.Sessions))
	}
	for id, w := range want.Sessions {
		g, ok := got.Sessions[id]
		if !ok {
			t.Errorf("session %s missing", id)
			continue
		}
		if g.Stats != w.Stats || len(g.Files) != len(w.Files) {
			t.Errorf("session %s = %+v, want %+v", id, g, w)
		}
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".amber", "index.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	defer s.Close()

	want := sampleIndex()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	indexesEqual(t, got, want)
}

func TestFileStore_MissingIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	defer s.Close()

	idx, err := s.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(idx.Files) != 0 || idx.SchemaVersion != SchemaVersion {
		t.Errorf("missing file should load as a fresh index, got %+v", idx)
	}
}

func TestFileStore_LockExcludesSecond(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	s1, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("first NewFileStore error: %v", err)
	}

	if _, err := NewFileStore(path); err == nil {
		t.Error("second open should fail while the lock is held")
	}

	if err := s1.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("open after release error: %v", err)
	}
	s2.Close()
}

func TestFileStore_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	defer s.Close()

	if err := s.Save(sampleIndex()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := s.Save(NewIndex()); err != nil {
		t.Fatalf("second Save error: %v", err)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "index.json" && e.Name() != "index.json.lock" {
			t.Errorf("unexpected file left behind: %s", e.Name())
		}
	}
}

func TestBoltStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore error: %v", err)
	}
	defer s.Close()

	want := sampleIndex()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	indexesEqual(t, got, want)
}

func TestBoltStore_DeletesRemovedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore error: %v", err)
	}
	defer s.Close()

	idx := sampleIndex()
	if err := s.Save(idx); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	delete(idx.Files, "bbbb000000000000000000000000000000000000")
	delete(idx.Sessions, "s1")
	if err := s.Save(idx); err != nil {
		t.Fatalf("second Save error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(got.Files) != 1 {
		t.Errorf("Files = %d, want 1 after delete", len(got.Files))
	}
	if len(got.Sessions) != 0 {
		t.Errorf("Sessions = %d, want 0 after delete", len(got.Sessions))
	}
}

func TestStoreParity_FileVsBolt(t *testing.T) {
	dir := t.TempDir()

	fs, err := NewFileStore(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	defer fs.Close()
	bs, err := NewBoltStore(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("NewBoltStore error: %v", err)
	}
	defer bs.Close()

	want := sampleIndex()
	for _, s := range []Store{fs, bs} {
		if err := s.Save(want); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	fromFile, err := fs.Load()
	if err != nil {
		t.Fatalf("file Load error: %v", err)
	}
	fromBolt, err := bs.Load()
	if err != nil {
		t.Fatalf("bolt Load error: %v", err)
	}
	indexesEqual(t, fromFile, want)
	indexesEqual(t, fromBolt, want)
	indexesEqual(t, fromBolt, fromFile)
}
