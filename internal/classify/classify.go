package classify

import (
	"path/filepath"
	"strings"
)

// Kind is the content category of a file.
type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindPDF    Kind = "pdf"
	KindBinary Kind = "binary"
)

// Size ceilings per kind. Text is tightest because inlined text is paid for
// in tokens on every transmission.
const (
	MaxTextBytes  = 256 << 10 // 256 KiB
	MaxImageBytes = 3 << 20   // 3 MiB
	MaxPDFBytes   = 10 << 20  // 10 MiB
)

// Class is the classification result for one path.
type Class struct {
	Kind      Kind
	MaxBytes  int64  // per-file size ceiling; 0 means excluded
	MediaType string // declared media type for attachment kinds
}

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// binaryExts are excluded from context payloads entirely.
var binaryExts = map[string]bool{
	// Archives
	".zip": true, ".tar": true, ".gz": true, ".tgz": true, ".bz2": true,
	".xz": true, ".7z": true, ".rar": true, ".jar": true, ".war": true,
	// Executables and objects
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".bin": true, ".class": true, ".pyc": true, ".wasm": true,
	// Media containers
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".wav": true, ".flac": true, ".ogg": true, ".webm": true,
	// Fonts
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	// Databases and other opaque formats
	".db": true, ".sqlite": true, ".sqlite3": true, ".ico": true,
	".bmp": true, ".tiff": true, ".psd": true,
}

// textExts are recognized source, markup, and configuration extensions.
// Membership here is documentation of known-text formats; lookup misses
// fall through to the Text default anyway.
var textExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".rb": true, ".rs": true, ".java": true, ".kt": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true,
	".cs": true, ".swift": true, ".php": true, ".sh": true, ".bash": true,
	".zsh": true, ".fish": true, ".pl": true, ".lua": true, ".r": true,
	".scala": true, ".clj": true, ".ex": true, ".exs": true, ".erl": true,
	".hs": true, ".ml": true, ".sql": true, ".proto": true, ".graphql": true,
	".md": true, ".rst": true, ".txt": true, ".adoc": true, ".tex": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".less": true,
	".svg": true, ".xml": true, ".json": true, ".yaml": true, ".yml": true,
	".toml": true, ".ini": true, ".cfg": true, ".conf": true, ".env": true,
	".properties": true, ".gradle": true, ".cmake": true, ".mk": true,
	".tf": true, ".tfvars": true, ".dockerfile": true, ".lock": true,
	".mod": true, ".sum": true, ".csv": true, ".tsv": true,
}

// textNames are well-known extensionless text files.
var textNames = map[string]bool{
	"Makefile": true, "Dockerfile": true, "Jenkinsfile": true,
	"Gemfile": true, "Rakefile": true, "Procfile": true, "Vagrantfile": true,
	"LICENSE": true, "NOTICE": true, "AUTHORS": true, "CODEOWNERS": true,
	".gitignore": true, ".gitattributes": true, ".dockerignore": true,
	".editorconfig": true, ".npmrc": true, ".nvmrc": true,
}

// Classify returns the content class for path. Unknown extensions default
// to Text.
func Classify(path string) Class {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))

	if textNames[base] {
		return Class{Kind: KindText, MaxBytes: MaxTextBytes}
	}
	if mt, ok := imageTypes[ext]; ok {
		return Class{Kind: KindImage, MaxBytes: MaxImageBytes, MediaType: mt}
	}
	if ext == ".pdf" {
		return Class{Kind: KindPDF, MaxBytes: MaxPDFBytes, MediaType: "application/pdf"}
	}
	if binaryExts[ext] {
		return Class{Kind: KindBinary}
	}
	if textExts[ext] {
		return Class{Kind: KindText, MaxBytes: MaxTextBytes}
	}
	// Unknown extension: treat as text under the text ceiling.
	return Class{Kind: KindText, MaxBytes: MaxTextBytes}
}

// Attachment reports whether k travels as a base64 attachment rather than
// inlined text.
func Attachment(k Kind) bool {
	switch k {
	case KindImage, KindPDF:
		return true
	case KindText, KindBinary:
		return false
	}
	return false
}
