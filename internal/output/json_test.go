package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dshills/amber/internal/bundle"
)

func TestJSONBundle(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBundle(&buf, FormatJSON, sampleBundle()); err != nil {
		t.Fatalf("WriteBundle error: %v", err)
	}

	// Verify it round-trips and carries the wire field names
	var parsed bundle.Bundle
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if parsed.Summary.FileCount != 2 {
		t.Errorf("fileCount = %d, want 2", parsed.Summary.FileCount)
	}
	if parsed.CacheHints.TTLSeconds != 3600 {
		t.Errorf("ttlSeconds = %d, want 3600", parsed.CacheHints.TTLSeconds)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	for _, key := range []string{"systemContextText", "textUnits", "mediaUnits", "cacheHints", "summary"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
}

func TestJSONCleanup(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCleanup(&buf, FormatJSON, sampleCleanup(true)); err != nil {
		t.Fatalf("WriteCleanup error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if raw["dryRun"] != true {
		t.Errorf("dryRun = %v, want true", raw["dryRun"])
	}
	if _, ok := raw["candidates"]; !ok {
		t.Error("missing candidates key")
	}
}
