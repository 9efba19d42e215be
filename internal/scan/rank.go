package scan

import (
	"path"
	"sort"
	"strings"
)

// Importance classes, highest first. Truncation keeps higher classes.
const (
	rankManifest = 7
	rankReadme   = 6
	rankEntry    = 5
	rankConfig   = 4
	rankSource   = 3
	rankTest     = 2
	rankDocs     = 1
	rankOther    = 0
)

var manifestNames = map[string]struct{}{
	"go.mod":            {},
	"go.sum":            {},
	"package.json":      {},
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"cargo.toml":        {},
	"cargo.lock":        {},
	"requirements.txt":  {},
	"pyproject.toml":    {},
	"poetry.lock":       {},
	"gemfile":           {},
	"gemfile.lock":      {},
	"composer.json":     {},
	"pom.xml":           {},
	"build.gradle":      {},
	"makefile":          {},
	"dockerfile":        {},
}

// Rank orders entries by importance, highest first; ties break on path so
// the ordering is fully deterministic.
func Rank(entries []FileEntry) {
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := Importance(entries[i].Path), Importance(entries[j].Path)
		if ri != rj {
			return ri > rj
		}
		return entries[i].Path < entries[j].Path
	})
}

// Truncate keeps the first maxFiles entries of a ranked slice. With a ranked
// input this drops the least important entries first.
func Truncate(entries []FileEntry, maxFiles int) []FileEntry {
	if maxFiles > 0 && len(entries) > maxFiles {
		return entries[:maxFiles]
	}
	return entries
}

// Importance scores a slash-separated path into one of the rank classes.
func Importance(p string) int {
	base := strings.ToLower(path.Base(p))

	if _, ok := manifestNames[base]; ok {
		return rankManifest
	}
	if strings.HasPrefix(base, "readme") {
		return rankReadme
	}
	if isEntryPoint(p, base) {
		return rankEntry
	}
	if isTest(p, base) {
		return rankTest
	}
	if isConfig(p, base) {
		return rankConfig
	}
	if underAny(p, "src", "lib", "internal", "pkg", "app") {
		return rankSource
	}
	if isDocs(p, base) {
		return rankDocs
	}
	return rankOther
}

func isEntryPoint(p, base string) bool {
	if strings.HasPrefix(base, "main.") || strings.HasPrefix(base, "index.") {
		return true
	}
	return underAny(p, "cmd")
}

func isTest(p, base string) bool {
	if strings.Contains(base, "_test.") || strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") {
		return true
	}
	return underAny(p, "test", "tests", "testdata")
}

func isConfig(p, base string) bool {
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.Contains(p, "/") {
		return false
	}
	switch path.Ext(base) {
	case ".yml", ".yaml", ".toml", ".json", ".ini", ".cfg":
		return true
	}
	return false
}

func isDocs(p, base string) bool {
	if underAny(p, "docs", "doc") {
		return true
	}
	return strings.HasSuffix(base, ".md")
}

// underAny reports whether any directory segment of p equals one of names.
func underAny(p string, names ...string) bool {
	segs := strings.Split(p, "/")
	for _, seg := range segs[:len(segs)-1] {
		for _, n := range names {
			if seg == n {
				return true
			}
		}
	}
	return false
}
