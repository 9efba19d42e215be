// Package cache tracks which content has been sent to the model.
//
// The index is keyed by content hash: identical bytes at any path are one
// record, so a second send of the same bytes is a cache hit regardless of
// where the file lives. Records are never removed by normal maintenance —
// cleanup and delete set soft markers, preserving send history for audit.
// Physical removal happens only through explicit compaction.
//
// The whole index is loaded at the start of a command and written back in
// full on every mutation, through a Store: FileStore keeps one JSON
// document with atomic replace plus an advisory lock file, BoltStore keeps
// per-key records in a bbolt database.
package cache
