// Package watch keeps the scan snapshot fresh while a repository is being
// edited. It registers every non-ignored directory with fsnotify, coalesces
// event bursts behind a debounce timer, and rewrites .amber/scan.json after
// each settled change so the next build starts from a warm file listing.
package watch
