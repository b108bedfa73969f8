package engine

import (
	"testing"
	"time"
)

func TestRetryPolicy_NextDelayIsGeometric(t *testing.T) {
	p := DefaultRetryPolicy()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{0, 1 * time.Second}, // clamped
	}
	for _, tc := range cases {
		if got := p.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryPolicy_NextDelayCapped(t *testing.T) {
	p := RetryPolicy{
		InitialInterval:    1 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    100 * time.Second,
		MaximumAttempts:    50,
	}
	// 2^9 = 512s, well past the cap.
	if got := p.NextDelay(10); got != 100*time.Second {
		t.Fatalf("got %s, want cap of 100s", got)
	}
}
