// Package ratelimit provides client-side sliding-window rate limiting for
// upstream providers. Limits are advisory: waiting trims the worst request
// bursts, but the upstream remains the authority and 429 handling stays with
// the retry layer.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	windowSize = 60 * time.Second

	// Small cushion past the oldest entry's expiry so a recheck lands on a
	// window that has actually slid.
	expiryBuffer = 100 * time.Millisecond
)

// Limits caps requests and tokens inside the sliding window.
type Limits struct {
	RequestsPerMinute int
	TokensPerMinute   int
}

// DefaultLimits applies when a provider descriptor carries no limits.
var DefaultLimits = Limits{RequestsPerMinute: 60, TokensPerMinute: 100000}

type tokenEntry struct {
	at     time.Time
	tokens int
}

// Limiter tracks request timestamps and token spend over the trailing minute.
type Limiter struct {
	mu     sync.Mutex
	limits Limits

	requests []time.Time
	tokens   []tokenEntry

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a limiter with the given limits. Zero or negative limit values
// fall back to the defaults.
func New(limits Limits) *Limiter {
	if limits.RequestsPerMinute <= 0 {
		limits.RequestsPerMinute = DefaultLimits.RequestsPerMinute
	}
	if limits.TokensPerMinute <= 0 {
		limits.TokensPerMinute = DefaultLimits.TokensPerMinute
	}
	return &Limiter{
		limits: limits,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-windowSize)

	i := 0
	for i < len(l.requests) && !l.requests[i].After(cutoff) {
		i++
	}
	l.requests = l.requests[i:]

	j := 0
	for j < len(l.tokens) && !l.tokens[j].at.After(cutoff) {
		j++
	}
	l.tokens = l.tokens[j:]
}

func (l *Limiter) tokensInWindow() int {
	total := 0
	for _, e := range l.tokens {
		total += e.tokens
	}
	return total
}

// WaitForCapacity blocks until the window can absorb one request carrying
// tokensNeeded tokens, then records it. Waits recheck after the oldest entry
// expires rather than assuming a single sleep suffices. Returns early only on
// context cancellation.
func (l *Limiter) WaitForCapacity(ctx context.Context, tokensNeeded int) error {
	if tokensNeeded < 1 {
		tokensNeeded = 1
	}

	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.requests) >= l.limits.RequestsPerMinute {
			wait := windowSize - now.Sub(l.requests[0]) + expiryBuffer
			l.mu.Unlock()
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if l.tokensInWindow()+tokensNeeded > l.limits.TokensPerMinute && len(l.tokens) > 0 {
			wait := windowSize - now.Sub(l.tokens[0].at) + expiryBuffer
			l.mu.Unlock()
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		l.requests = append(l.requests, now)
		if tokensNeeded > 1 {
			l.tokens = append(l.tokens, tokenEntry{at: now, tokens: tokensNeeded})
		}
		l.mu.Unlock()
		return nil
	}
}

// Capacity reports the remaining request and token headroom in the window.
func (l *Limiter) Capacity() (requests, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())

	requests = l.limits.RequestsPerMinute - len(l.requests)
	if requests < 0 {
		requests = 0
	}
	tokens = l.limits.TokensPerMinute - l.tokensInWindow()
	if tokens < 0 {
		tokens = 0
	}
	return requests, tokens
}
