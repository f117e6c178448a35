// Package retry provides a small retry-policy value object applied uniformly
// to external provider calls.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes retry behavior for a single external call.
type Policy struct {
	maxAttempts int
	baseBackoff time.Duration
	callTimeout time.Duration
}

// Default parameters for provider calls.
const (
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = 200 * time.Millisecond
	DefaultCallTimeout = 10 * time.Second
)

// NewPolicy validates and creates a retry policy.
func NewPolicy(maxAttempts int, baseBackoff, callTimeout time.Duration) (Policy, error) {
	if maxAttempts <= 0 {
		return Policy{}, fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
	}
	if baseBackoff < 0 {
		return Policy{}, fmt.Errorf("base backoff must be non-negative, got %s", baseBackoff)
	}
	if callTimeout <= 0 {
		return Policy{}, fmt.Errorf("call timeout must be positive, got %s", callTimeout)
	}
	return Policy{maxAttempts: maxAttempts, baseBackoff: baseBackoff, callTimeout: callTimeout}, nil
}

// DefaultPolicy returns the standard provider policy: 3 attempts,
// exponential backoff from 200ms, 10s per-call timeout.
func DefaultPolicy() Policy {
	return Policy{
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: DefaultBaseBackoff,
		callTimeout: DefaultCallTimeout,
	}
}

// WithTimeout returns a copy of the policy with a different per-call timeout.
func (p Policy) WithTimeout(d time.Duration) Policy {
	p.callTimeout = d
	return p
}

// MaxAttempts returns the attempt bound.
func (p Policy) MaxAttempts() int { return p.maxAttempts }

// CallTimeout returns the per-call timeout.
func (p Policy) CallTimeout() time.Duration { return p.callTimeout }

// Do runs fn up to MaxAttempts times with exponential backoff between
// attempts. Each attempt gets its own timeout context. Context cancellation
// stops retrying immediately and returns the context error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := p.baseBackoff

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("after %d attempts: %w", p.maxAttempts, lastErr)
}
