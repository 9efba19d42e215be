// Amber is a content-addressable context cache for LLM code-review bots.
//
// It assembles a bounded, deduplicated snapshot of repository content (text,
// images, documents), identifies content by git blob hash so tracked files
// never need re-hashing, and keeps a persistent index of what a model has
// already seen so repeated bytes are never re-transmitted.
//
// Usage:
//
//	amber build --max-files 50 --track    # assemble and track a context bundle
//	amber track README.md main.go        # record files as sent
//	amber cleanup --max-age 30           # soft-mark stale cache records
//	amber stats                          # aggregate cache statistics
//	amber list                           # active (non-cleaned) records
//	amber compact --retention 90         # drop soft-marked records for good
//	amber watch                          # keep the scan snapshot fresh
//
// See https://github.com/dshills/amber for full documentation.
package main
