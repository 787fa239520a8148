package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy is attached per task and decides whether a failed attempt is
// run again and how long to wait before doing so.
type RetryPolicy struct {
	// MaxAttempts counts the first run. Values below 1 mean a single attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter spreads delays by +/- the given fraction. 0 disables it.
	Jitter float64
	// Retryable classifies errors. nil treats every non-permanent error as transient.
	Retryable func(error) bool
}

// NoRetry runs a task exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Exponential returns a policy doubling the delay after each failed attempt.
func Exponential(attempts int, base, max time.Duration) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: base, MaxDelay: max, Jitter: 0.2}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// ShouldRetry reports whether attempt (1-based) failing with err gets another run.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.attempts() {
		return false
	}
	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// Delay returns the wait before the run following attempt (1-based).
func (p RetryPolicy) Delay(attempt int, rng *rand.Rand) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	maxD := p.MaxDelay
	if maxD <= 0 {
		maxD = p.BaseDelay
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > maxD {
			d = maxD
			break
		}
	}
	if p.Jitter > 0 && rng != nil {
		r := (rng.Float64()*2 - 1) * p.Jitter
		d = time.Duration(float64(d) * (1 + r))
		if d < 0 {
			d = 0
		}
	}
	if d > maxD {
		d = maxD
	}
	return d
}

// Permanent marks err as non-retryable regardless of the task policy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return fmt.Sprintf("permanent: %v", e.err) }
func (e permanentError) Unwrap() error { return e.err }
