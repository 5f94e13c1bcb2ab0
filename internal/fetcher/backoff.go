package fetcher

import (
	"context"
	"math/rand"
	"time"
)

// Retry and politeness defaults.
const (
	// DefaultMaxRetries is the number of retries following the initial
	// attempt of a page request, one per delay on the backoff schedule.
	DefaultMaxRetries = 5
	// baseRetryDelay is the delay before the first retry.
	baseRetryDelay = time.Second
	// maxRetryDelay caps the exponential backoff schedule.
	maxRetryDelay = 16 * time.Second
	// retryJitterFraction bounds the random jitter added to each retry delay.
	retryJitterFraction = 0.2

	// DefaultPolitenessDelay is the fixed baseline pause before each request.
	DefaultPolitenessDelay = 250 * time.Millisecond
	// DefaultPolitenessJitter is the symmetric random jitter applied to the
	// politeness delay, preventing synchronized bursts across sources.
	DefaultPolitenessJitter = 100 * time.Millisecond
)

// retryDelay returns the backoff delay after the given failed attempt
// (1-based): 1s, 2s, 4s, 8s, 16s.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseRetryDelay << (attempt - 1)
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// jitterFunc produces a random offset in [-max, +max].
type jitterFunc func(max time.Duration) time.Duration

// symmetricJitter is the production jitterFunc.
func symmetricJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(2*max)+1)) - max
}

// sleepFunc pauses for d or returns early with the context's error.
type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the production sleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
