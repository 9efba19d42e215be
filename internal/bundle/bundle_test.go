package bundle

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/amber/internal/blobhash"
	"github.com/dshills/amber/internal/classify"
	"github.com/dshills/amber/internal/scan"
)

type mapLoader map[string][]byte

func (m mapLoader) Load(_ context.Context, path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return data, nil
}

func entry(path, content string, kind classify.Kind) scan.FileEntry {
	return scan.FileEntry{
		Path: path,
		Hash: blobhash.Sum([]byte(content)),
		Kind: kind,
		Size: int64(len(content)),
	}
}

func TestBuild_DedupByHash(t *testing.T) {
	content := "shared bytes\n"
	loader := mapLoader{
		"a.md":      []byte(content),
		"b/copy.md": []byte(content),
	}
	b := NewBuilder(loader, Options{}, nil)

	got, err := b.Build(context.Background(), []scan.FileEntry{
		entry("a.md", content, classify.KindText),
		entry("b/copy.md", content, classify.KindText),
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(got.TextUnits) != 1 {
		t.Fatalf("got %d text units, want 1", len(got.TextUnits))
	}
	u := got.TextUnits[0]
	if len(u.Paths) != 2 || u.Paths[0] != "a.md" || u.Paths[1] != "b/copy.md" {
		t.Errorf("Paths = %v, want both paths on one unit", u.Paths)
	}
	if u.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d (counted once)", u.Size, len(content))
	}
	if got.Summary.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1 logical unit", got.Summary.FileCount)
	}
}

func TestBuild_SystemContextHeaders(t *testing.T) {
	content := "package main\n"
	loader := mapLoader{"main.go": []byte(content)}
	b := NewBuilder(loader, Options{}, nil)

	got, err := b.Build(context.Background(), []scan.FileEntry{entry("main.go", content, classify.KindText)})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	hash := blobhash.Sum([]byte(content))
	header := fmt.Sprintf("=== main.go (%s) ===", hash[:12])
	if !strings.Contains(got.SystemContext, header) {
		t.Errorf("system context missing header %q:\n%s", header, got.SystemContext)
	}
	if !strings.Contains(got.SystemContext, content) {
		t.Error("system context missing file content")
	}
}

func TestBuild_LineCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	content := sb.String()
	loader := mapLoader{"big.txt": []byte(content)}
	b := NewBuilder(loader, Options{MaxLines: 10}, nil)

	got, err := b.Build(context.Background(), []scan.FileEntry{entry("big.txt", content, classify.KindText)})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	u := got.TextUnits[0]
	if !strings.Contains(u.Content, "... [truncated 41 more lines]") {
		t.Errorf("missing truncation marker:\n%s", u.Content)
	}
	if strings.Contains(u.Content, "line 10") {
		t.Error("content beyond the cap survived")
	}
	if u.Size != int64(len(content)) {
		t.Errorf("Size = %d, want original %d", u.Size, len(content))
	}
}

func TestBuild_MediaUnit(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}
	loader := mapLoader{"logo.png": png}
	b := NewBuilder(loader, Options{}, nil)

	e := scan.FileEntry{Path: "logo.png", Hash: blobhash.Sum(png), Kind: classify.KindImage, Size: int64(len(png))}
	got, err := b.Build(context.Background(), []scan.FileEntry{e})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(got.MediaUnits) != 1 {
		t.Fatalf("got %d media units, want 1", len(got.MediaUnits))
	}
	u := got.MediaUnits[0]
	if u.MediaType != "image/png" {
		t.Errorf("MediaType = %q, want image/png", u.MediaType)
	}
	if u.Data != base64.StdEncoding.EncodeToString(png) {
		t.Error("Data is not the base64 of the raw bytes")
	}
	if strings.Contains(got.SystemContext, u.Data) {
		t.Error("media content should not appear in the system context")
	}
}

func TestBuild_CacheHints(t *testing.T) {
	text := "text\n"
	png := []byte{0x89, 'P', 'N', 'G'}
	loader := mapLoader{"a.txt": []byte(text), "b.png": png}
	b := NewBuilder(loader, Options{TTLSeconds: 600}, nil)

	got, err := b.Build(context.Background(), []scan.FileEntry{
		entry("a.txt", text, classify.KindText),
		{Path: "b.png", Hash: blobhash.Sum(png), Kind: classify.KindImage, Size: int64(len(png))},
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(got.CacheHints.Hashes) != 2 {
		t.Errorf("CacheHints.Hashes = %v, want both unit hashes", got.CacheHints.Hashes)
	}
	if got.CacheHints.TTLSeconds != 600 {
		t.Errorf("TTLSeconds = %d, want 600", got.CacheHints.TTLSeconds)
	}
}

func TestBuild_RedactsSecrets(t *testing.T) {
	content := `key = "sk-ant-REDACTED"` + "\n"
	loader := mapLoader{"config.go": []byte(content)}
	b := NewBuilder(loader, Options{RedactSecrets: true}, nil)

	got, err := b.Build(context.Background(), []scan.FileEntry{entry("config.go", content, classify.KindText)})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if strings.Contains(got.TextUnits[0].Content, "sk-ant-") {
		t.Error("secret survived into the bundle")
	}
	if strings.Contains(got.SystemContext, "sk-ant-") {
		t.Error("secret survived into the system context")
	}
}

func TestBuild_RedactsByPath(t *testing.T) {
	content := "DB_HOST=localhost\n"
	loader := mapLoader{".env": []byte(content)}
	b := NewBuilder(loader, Options{RedactSecrets: true, RedactPaths: []string{"**/.env"}}, nil)

	got, err := b.Build(context.Background(), []scan.FileEntry{entry(".env", content, classify.KindText)})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if strings.Contains(got.TextUnits[0].Content, "DB_HOST") {
		t.Error("path-policy file content survived")
	}
}

func TestBuild_SkipsUnreadable(t *testing.T) {
	loader := mapLoader{"ok.txt": []byte("fine\n")}
	b := NewBuilder(loader, Options{}, nil)

	got, err := b.Build(context.Background(), []scan.FileEntry{
		entry("ok.txt", "fine\n", classify.KindText),
		{Path: "gone.txt", Hash: "aaaa000000000000000000000000000000000000", Kind: classify.KindText, Size: 10},
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(got.TextUnits) != 1 || got.TextUnits[0].Paths[0] != "ok.txt" {
		t.Errorf("TextUnits = %v, want only ok.txt", got.TextUnits)
	}
	if got.Summary.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", got.Summary.FileCount)
	}
}

func TestBuild_Summary(t *testing.T) {
	text := "hello\n"
	png := []byte{0x89, 'P', 'N', 'G', 1, 2}
	loader := mapLoader{"a.txt": []byte(text), "b.png": png}
	b := NewBuilder(loader, Options{}, nil)

	got, err := b.Build(context.Background(), []scan.FileEntry{
		entry("a.txt", text, classify.KindText),
		{Path: "b.png", Hash: blobhash.Sum(png), Kind: classify.KindImage, Size: int64(len(png))},
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if got.Summary.ByCategory[classify.KindText] != 1 || got.Summary.ByCategory[classify.KindImage] != 1 {
		t.Errorf("ByCategory = %v", got.Summary.ByCategory)
	}
	if want := int64(len(text) + len(png)); got.Summary.TotalBytes != want {
		t.Errorf("TotalBytes = %d, want %d", got.Summary.TotalBytes, want)
	}
}

func TestUnits(t *testing.T) {
	b := &Bundle{
		TextUnits: []TextUnit{
			{Hash: "t1", Paths: []string{"a.md", "b.md"}, Size: 10},
		},
		MediaUnits: []MediaUnit{
			{Hash: "m1", Paths: []string{"img.png"}, Size: 20},
		},
	}
	units := b.Units()
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if units[0].Path != "a.md" || units[0].Hash != "t1" {
		t.Errorf("units[0] = %+v", units[0])
	}
	if units[1].Kind != classify.KindImage {
		t.Errorf("units[1].Kind = %q, want image", units[1].Kind)
	}
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := DirLoader{Root: dir}
	data, err := d.Load(context.Background(), "f.txt")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("Load = %q", data)
	}
	if _, err := d.Load(context.Background(), "missing.txt"); err == nil {
		t.Error("expected error for a missing file")
	}
}
