// Package retry implements classified retries with exponential backoff.
// Errors are judged retryable by their text, so failures surfaced by any
// transport (HTTP status lines, syscall strings, provider messages) are
// covered by one classifier.
package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"

	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

// Substrings that mark an error as transient. Matching is case-insensitive.
var retryablePatterns = []string{
	"timeout",
	"network error",
	"connection reset",
	"service unavailable",
	"internal server error",
	"bad gateway",
	"gateway timeout",
	"rate limit",
	"too many requests",
	"temporarily unavailable",
	"overloaded",
	"capacity",
	"quota exceeded",
	"fetch failed",
	"econnreset",
	"enotfound",
	"etimedout",
	"429",
	"500",
	"502",
	"503",
	"504",
}

const defaultMaxBackoff = 60 * time.Second

// Policy controls retry counts and backoff growth.
type Policy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// The three profiles used by the gateway. Rate-limit retries back off much
// longer because provider windows reset on minute boundaries.
var (
	NetworkPolicy     = Policy{MaxRetries: 3, Backoff: time.Second, MaxBackoff: defaultMaxBackoff}
	RateLimitPolicy   = Policy{MaxRetries: 5, Backoff: 2 * time.Second, MaxBackoff: 5 * time.Minute}
	ServerErrorPolicy = Policy{MaxRetries: 3, Backoff: 1500 * time.Millisecond, MaxBackoff: defaultMaxBackoff}
)

// IsRetryable reports whether the error text matches a transient pattern.
// A GatewayError's explicit Retryable flag wins over text matching.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ge, ok := err.(*gwerrors.GatewayError); ok {
		return ge.Retryable
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Delay computes the backoff before the given attempt (0-based) with ±10%
// jitter applied after capping.
func (p Policy) Delay(attempt int) time.Duration {
	max := p.MaxBackoff
	if max <= 0 {
		max = defaultMaxBackoff
	}

	delay := p.Backoff << uint(attempt)
	if delay > max || delay <= 0 {
		delay = max
	}

	jitter := time.Duration((rand.Float64() - 0.5) * 2 * float64(delay) * 0.1)
	return delay + jitter
}

// Do runs fn until it succeeds, exhausts the retry budget, or hits a
// non-retryable error. The last error is returned unwrapped so callers can
// still classify it.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay(attempt - 1)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// ForError selects the retry profile matching an error's classification.
func ForError(err error) Policy {
	if err == nil {
		return NetworkPolicy
	}
	if ge, ok := err.(*gwerrors.GatewayError); ok {
		switch ge.Type {
		case gwerrors.TypeRateLimit:
			return RateLimitPolicy
		case gwerrors.TypeUpstream, gwerrors.TypeServiceUnavailable, gwerrors.TypeInternalError:
			return ServerErrorPolicy
		}
		return NetworkPolicy
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return RateLimitPolicy
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "504") || strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "bad gateway") || strings.Contains(msg, "service unavailable"):
		return ServerErrorPolicy
	default:
		return NetworkPolicy
	}
}
