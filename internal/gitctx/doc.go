// Package gitctx reads repository state from git for the scanner and the
// staleness detector.
//
// The [Inspector] interface is the only coupling point between cache logic
// and git: it exposes a tracked-file listing with per-file blob hashes and
// sizes, a history walk yielding the blobs touched by commits older than a
// cutoff, and basic repository metadata. [Git] implements it by shelling out
// to the git CLI; [Fake] is an in-memory implementation for tests.
//
// Blob hashes come straight from git's own object listing, so callers never
// re-hash tracked content. When a directory is not a git repository (or the
// listing is empty), callers fall back to a filesystem walk and compute the
// same hashes locally via the blobhash package.
package gitctx
