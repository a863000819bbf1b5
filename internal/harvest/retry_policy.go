package harvest

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts bounds how many times a site crawl is tried per run.
	DefaultMaxAttempts = 3
	// DefaultRetryBackoff is the fixed wait between attempts.
	DefaultRetryBackoff = 5 * time.Second
)

// FixedRetryPolicy retries up to maxAttempts with a constant backoff.
type FixedRetryPolicy struct {
	maxAttempts int
	backoff     time.Duration
}

// NewFixedRetryPolicy builds a policy; non-positive values fall back to the defaults.
func NewFixedRetryPolicy(maxAttempts int, backoff time.Duration) *FixedRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff < 0 {
		backoff = DefaultRetryBackoff
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts, backoff: backoff}
}

// MaxAttempts returns the attempt ceiling.
func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error is retryable.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// a fetch timeout is a FetchError, so this only matches caller cancellation
		_, isFetch := AsFetchError(err)
		return isFetch
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.backoff
}
