// Package bundle assembles scanned files into a context payload.
//
// Entries are grouped by content hash so identical bytes at different
// paths become one logical unit carrying every path. Text units are
// inlined with a line cap and concatenated into a single system-context
// block; image and PDF units are base64 attachments. The bundle carries
// cache hints (unit hashes plus a TTL) so a downstream model-call layer
// can mark prompt ranges as cacheable — the builder never calls a model
// itself.
package bundle
