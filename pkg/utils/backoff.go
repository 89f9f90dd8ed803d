package utils

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// CalculateExponentialBackoffWithJitter computes a jittered exponential backoff delay.
// - count: Retry attempt number (1-based, e.g., 1 for first retry)
// - base: Base delay (e.g., 500 * time.Millisecond)
// - max: Maximum allowable delay (e.g., 30 * time.Second)
func CalculateExponentialBackoffWithJitter(count int, base time.Duration, max time.Duration) time.Duration {
	if count <= 0 || base <= 0 {
		return 0
	}

	// Exponential backoff: base * 2^(count-1)
	baseDelay := base * time.Duration(math.Pow(2, float64(count-1)))
	if baseDelay <= 0 || baseDelay > max {
		baseDelay = max
	}

	// -12.5% to +12.5% of baseDelay
	if spread := int64(baseDelay / 4); spread > 0 {
		baseDelay += time.Duration(rand.Int63n(spread)) - (baseDelay / 8)
	}

	if baseDelay > max {
		baseDelay = max
	}
	return baseDelay
}

// RetryWithBackoff calls fn up to attempts times, sleeping between failures.
// It stops early when ctx is done or fn reports the error as permanent.
func RetryWithBackoff(ctx context.Context, attempts int, base, max time.Duration, fn func(attempt int) (permanent bool, err error)) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var permanent bool
		if permanent, err = fn(attempt); err == nil || permanent {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(CalculateExponentialBackoffWithJitter(attempt, base, max)):
		}
	}
	return err
}
