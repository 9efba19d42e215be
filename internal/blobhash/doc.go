// Package blobhash computes git-compatible content hashes.
//
// A blob hash is the SHA-1 of "blob <size>\x00<bytes>" — the same scheme git
// uses for its object store. Hashes computed here for untracked or in-memory
// content compare directly against hashes reported by `git ls-tree` and
// `git log --raw`, so cache identity never requires a round trip through git
// for content git has already hashed.
//
// Hashing operates on raw bytes only. Decoding and re-encoding text through a
// character set would silently change the hash, so no such normalization is
// ever applied.
package blobhash
