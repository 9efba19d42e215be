// Package redact removes secrets from file content before it is inlined
// into a context bundle.
//
// Detection uses named regex rules covering common secret shapes: API keys,
// JWTs, private key blocks, AWS access key IDs and secret access keys,
// bearer tokens, and provider-specific tokens (Anthropic, OpenAI, GitHub,
// Slack).
//
// Path-based redaction is also supported: files whose paths match configured
// glob patterns have their entire content replaced with [REDACTED] rather
// than being scanned rule by rule.
package redact
