// Package github fetches repository trees and file content over the
// GitHub REST API, so context can be built for repositories that are not
// checked out locally.
//
// The tree listing reuses GitHub's blob SHAs directly — they are git blob
// hashes, so they compare against locally computed ones without re-hashing.
// All calls run under the content fetch policy: transient statuses retry
// with backoff, 404 fails immediately. Batch fetches run in a bounded
// concurrency window to respect rate limits. Requires GITHUB_TOKEN.
package github
