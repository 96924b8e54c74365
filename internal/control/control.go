package control

import "time"

// Policy bounds remote calls made while a per-chat lock is held.
type Policy struct {
	CallTimeout time.Duration
	MaxRetries  int
}

// DefaultPolicy returns the default gateway call policy.
func DefaultPolicy() Policy {
	return Policy{
		CallTimeout: 120 * time.Second,
		MaxRetries:  2,
	}
}

// RetryBackoff computes exponential backoff with a fixed cap.
func RetryBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	seconds := 1 << (attempt - 1)
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

// ShouldRetry returns whether a failed attempt should be retried.
func ShouldRetry(p Policy, attempts int) bool {
	return attempts <= p.MaxRetries
}
