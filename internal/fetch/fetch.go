package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// Defaults shared by both built-in policies.
const (
	DefaultAttempts    = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultJitter      = 0.5
)

// Backoff computes the delay before the next attempt. The argument is the
// 1-based number of the attempt that just failed.
type Backoff func(attempt int) time.Duration

// ExponentialBackoff doubles base per attempt and adds up to jitter×delay
// of random spread. A jitter of 0 makes the schedule fully deterministic.
func ExponentialBackoff(base time.Duration, jitter float64) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base << uint(attempt-1)
		if jitter > 0 {
			d += time.Duration(jitter * rand.Float64() * float64(d))
		}
		return d
	}
}

// Policy controls how Do drives a remote call.
type Policy struct {
	Name           string
	Attempts       int
	AttemptTimeout time.Duration
	Backoff        Backoff
	Retryable      func(error) bool
}

// Error reports an exhausted attempt budget. Terminal failures are returned
// bare; only exhaustion wraps.
type Error struct {
	Target   string
	Attempts int
	Last     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetching %s: %d attempts exhausted: %v", e.Target, e.Attempts, e.Last)
}

func (e *Error) Unwrap() error { return e.Last }

// StatusError is a non-2xx HTTP response surfaced as an error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Kind is a provider-reported error category.
type Kind string

const (
	KindRateLimit       Kind = "rate_limit"
	KindOverloaded      Kind = "overloaded"
	KindTimeout         Kind = "timeout"
	KindConnection      Kind = "connection"
	KindNetwork         Kind = "network"
	KindInvalidRequest  Kind = "invalid_request"
	KindAuthentication  Kind = "authentication"
	KindPermission      Kind = "permission"
	KindNotFound        Kind = "not_found"
	KindRequestTooLarge Kind = "request_too_large"
	KindAPI             Kind = "api_error"
)

// Retryable reports whether the kind indicates a transient condition.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindOverloaded, KindTimeout, KindConnection, KindNetwork:
		return true
	}
	return false
}

// Terminal reports whether the kind rules out retrying regardless of the
// HTTP status that carried it.
func (k Kind) Terminal() bool {
	switch k {
	case KindInvalidRequest, KindAuthentication, KindPermission, KindNotFound, KindRequestTooLarge:
		return true
	}
	return false
}

// APIError is a structured provider error with a classified kind.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// RetryableStatus reports whether an HTTP status code is worth retrying.
// Covers the standard transient statuses plus the 520–527 edge-proxy range.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return code >= 520 && code <= 527
}

// IsAuth reports whether err indicates missing or rejected credentials.
func IsAuth(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind == KindAuthentication || ae.Kind == KindPermission
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
	}
	return false
}

// ContentPolicy retries transient HTTP statuses on raw content downloads.
// 404 is terminal: a missing file will not appear on the next attempt.
func ContentPolicy() Policy {
	return Policy{
		Name:      "content",
		Attempts:  DefaultAttempts,
		Backoff:   ExponentialBackoff(DefaultBackoffBase, DefaultJitter),
		Retryable: retryable,
	}
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return RetryableStatus(se.StatusCode)
	}
	var ae *APIError
	if errors.As(err, &ae) {
		if ae.Kind.Terminal() {
			return false
		}
		if ae.Kind.Retryable() {
			return true
		}
		return RetryableStatus(ae.StatusCode)
	}
	// Transport-level failures (reset connections, DNS) are transient.
	return !errors.Is(err, context.Canceled)
}

// ModelPolicy retries the same statuses as ContentPolicy plus transient
// provider error kinds; terminal kinds fail immediately regardless of status.
func ModelPolicy() Policy {
	p := ContentPolicy()
	p.Name = "model"
	return p
}

// Do runs fn under the policy: bounded attempts, per-attempt timeout, and a
// backoff pause between attempts. Terminal errors are returned as-is; an
// exhausted budget returns *Error carrying target, attempts, and last error.
func Do(ctx context.Context, p Policy, target string, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff(DefaultBackoffBase, DefaultJitter)
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		actx := ctx
		var cancel context.CancelFunc
		if p.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		last = fn(actx)
		if cancel != nil {
			cancel()
		}
		if last == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(last) {
			return last
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return &Error{Target: target, Attempts: attempts, Last: last}
}
