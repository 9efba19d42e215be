package redact

import (
	"path/filepath"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

type rule struct {
	name string
	re   *regexp.Regexp
}

// rules are regex heuristics for common secret shapes, applied in order.
var rules = []rule{
	{"api-key-assignment", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"aws-access-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws-secret-access-key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"secret-assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"bearer-token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"private-key-block", regexp.MustCompile(`-----BEGIN\s+(RSA\s+)?PRIVATE KEY-----`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack-token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic-key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai-key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"hex-secret-assignment", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, r := range rules {
		result = r.re.ReplaceAllString(result, placeholder)
	}
	return result
}

// PathMatches reports whether path matches any of the redaction patterns.
// A "**/" prefix also matches against the bare filename, so "**/.env"
// covers .env at any depth.
func PathMatches(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, path); err == nil && matched {
			return true
		}
		if trimmed := strings.TrimPrefix(pattern, "**/"); trimmed != pattern {
			if matched, err := filepath.Match(trimmed, filepath.Base(path)); err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Content redacts secrets from content; when the path matches a redaction
// pattern the whole content is replaced instead.
func Content(content, path string, patterns []string) string {
	if PathMatches(path, patterns) {
		return placeholder + " (file content redacted by path policy)\n"
	}
	return Secrets(content)
}
