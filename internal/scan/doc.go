// Package scan enumerates repository files for context building.
//
// Two strategies produce the same FileEntry shape: the tracked listing
// reuses blob hashes straight from git, and a filesystem walk (used when
// no repository metadata is available) hashes file bytes locally. Results
// are ranked by a deterministic importance score so truncation to a file
// budget always drops the least important entries first.
package scan
