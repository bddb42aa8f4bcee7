package routing

import (
	"math"
	"testing"
	"time"
)

func TestBackoff_NextDelayBounds(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:     5,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        time.Second,
		BackoffMultiple: 2,
		Jitter:          0.25,
	}

	for _, r := range []float64{0, 0.5, 0.999999} {
		b := NewBackoff(cfg, func() float64 { return r })
		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			base := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt-1))
			if base > float64(cfg.MaxDelay) {
				base = float64(cfg.MaxDelay)
			}
			lo := time.Duration(base * (1 - cfg.Jitter))
			hi := time.Duration(base * (1 + cfg.Jitter))

			got := b.NextDelay(attempt)
			if got <= 0 {
				t.Fatalf("attempt %d: delay must be positive, got %v", attempt, got)
			}
			if got < lo || got > hi {
				t.Errorf("attempt %d rand %v: delay %v outside [%v, %v]", attempt, r, got, lo, hi)
			}
		}
	}
}

func TestBackoff_NoJitterIsExact(t *testing.T) {
	b := NewBackoff(RetryConfig{
		InitialDelay:    time.Second,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2,
	}, func() float64 { return 0.7 })

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.NextDelay(i + 1); got != w {
			t.Errorf("NextDelay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoff_NeverZero(t *testing.T) {
	b := NewBackoff(RetryConfig{
		InitialDelay:    time.Nanosecond,
		BackoffMultiple: 1,
		Jitter:          0.9,
	}, func() float64 { return 0 })

	if got := b.NextDelay(0); got < minDelay {
		t.Errorf("expected at least %v, got %v", minDelay, got)
	}
	if got := b.NextDelay(1); got < minDelay {
		t.Errorf("expected at least %v, got %v", minDelay, got)
	}
}

func TestBackoff_LargeAttemptIsCapped(t *testing.T) {
	b := NewBackoff(DefaultRetryConfig, func() float64 { return 0.5 })
	if got := b.NextDelay(5000); got != DefaultRetryConfig.MaxDelay {
		t.Errorf("expected cap %v, got %v", DefaultRetryConfig.MaxDelay, got)
	}
}
