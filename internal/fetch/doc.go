// Package fetch provides bounded retry for remote calls.
//
// A Policy bundles the attempt budget, per-attempt timeout, backoff
// strategy, and a predicate deciding which errors are worth retrying.
// Two parameterizations cover the module's remote surfaces: ContentPolicy
// for raw content downloads and ModelPolicy for provider API calls.
// Backoff is a pure function of the attempt number so tests can inject
// deterministic delays.
package fetch
