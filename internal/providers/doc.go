// Package providers implements the Evaluator interface for each supported
// model provider.
//
// Supported providers: Anthropic (Claude) and Ollama / LMStudio for local
// models via the OpenAI-compatible API.
//
// Every call runs under the model retry policy from the fetch package:
// provider-reported error kinds decide retry eligibility, so a rate limit is
// retried with back-off while an invalid request fails immediately even when
// the HTTP status alone would look transient. The Anthropic provider marks
// the system context block with an ephemeral cache_control hint when the
// request asks for it, which lets repeated sends of the same bundle hit the
// provider-side prompt cache.
//
// Use [New] to obtain an Evaluator by provider name and model string.
package providers
