package procmgr

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Jitter adds random jitter to a duration to prevent thundering herd
// jitterFraction is between 0.0 (no jitter) and 1.0 (up to 100% jitter)
func Jitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}

	// Random value between [0, jitterFraction]
	jitter := rand.Float64() * jitterFraction

	// Apply jitter: duration * (1 ± jitter)
	multiplier := 1.0 + (jitter * 2.0) - jitterFraction
	return time.Duration(float64(duration) * multiplier)
}

// ExponentialBackoff calculates exponential backoff duration
// attempt: number of failed attempts (0-indexed)
// baseDelay: initial delay (e.g., 100 milliseconds)
// maxDelay: maximum delay cap (e.g., 5 seconds)
// Returns duration with jitter applied
func ExponentialBackoff(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Calculate exponential delay: baseDelay * 2^attempt
	multiplier := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(baseDelay) * multiplier)

	// Cap at maxDelay
	if delay > maxDelay {
		delay = maxDelay
	}

	// Add jitter (±25%)
	return Jitter(delay, 0.25)
}

// Retry calls fn until it succeeds, returns a non-retryable error, or
// attempts are exhausted. Between attempts it sleeps for
// ExponentialBackoff(attempt, baseDelay, maxDelay).
func Retry(ctx context.Context, attempts int, baseDelay, maxDelay time.Duration, fn func(ctx context.Context) (retry bool, err error)) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		var retry bool
		if retry, err = fn(ctx); err == nil || !retry {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(ExponentialBackoff(attempt, baseDelay, maxDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
