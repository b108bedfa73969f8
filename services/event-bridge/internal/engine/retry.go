package engine

import "time"

// RetryPolicy is the geometric backoff applied per activity call, not
// per workflow: each activity gets MaximumAttempts tries before its
// failure fails the workflow.
type RetryPolicy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
	MaximumAttempts    int
}

// DefaultRetryPolicy is shared by both bridge workflow definitions.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:    1 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    100 * time.Second,
		MaximumAttempts:    3,
	}
}

// NextDelay returns the pause after the given failed attempt (1-based):
// InitialInterval * BackoffCoefficient^(attempt-1), capped at
// MaximumInterval.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialInterval)
	for i := 1; i < attempt; i++ {
		d *= p.BackoffCoefficient
		if time.Duration(d) >= p.MaximumInterval {
			return p.MaximumInterval
		}
	}
	delay := time.Duration(d)
	if p.MaximumInterval > 0 && delay > p.MaximumInterval {
		return p.MaximumInterval
	}
	return delay
}
