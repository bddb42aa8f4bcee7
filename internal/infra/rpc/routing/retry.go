// Package routing drives single logical API calls: it classifies each
// response, retries transient failures with jittered exponential backoff and
// paces requests under the remote rate limit.
package routing

import (
	"math"
	"math/rand/v2"
	"time"
)

// minDelay is the smallest delay Backoff ever returns.
const minDelay = time.Millisecond

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"multiplier"`
	Jitter          float64       `yaml:"jitter"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    2 * time.Second,
	MaxDelay:        60 * time.Second,
	BackoffMultiple: 2.0,
	Jitter:          0.3,
}

// normalized fills zero or out-of-range fields from DefaultRetryConfig.
func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.BackoffMultiple < 1 {
		c.BackoffMultiple = DefaultRetryConfig.BackoffMultiple
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Jitter > 0.9 {
		c.Jitter = 0.9
	}
	return c
}

// Backoff computes the delay before retry attempt n:
// InitialDelay × BackoffMultiple^(n-1), capped at MaxDelay, then scaled by a
// random factor in [1-Jitter, 1+Jitter].
type Backoff struct {
	cfg  RetryConfig
	rand func() float64
}

// NewBackoff creates a Backoff. rnd must return values in [0, 1); nil uses
// math/rand/v2.
func NewBackoff(cfg RetryConfig, rnd func() float64) *Backoff {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Backoff{cfg: cfg.normalized(), rand: rnd}
}

// NextDelay returns the delay to wait after the given failed attempt (1-based).
func (b *Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.cfg.InitialDelay) * math.Pow(b.cfg.BackoffMultiple, float64(attempt-1))
	if delay > float64(b.cfg.MaxDelay) {
		delay = float64(b.cfg.MaxDelay)
	}

	factor := 1 - b.cfg.Jitter + 2*b.cfg.Jitter*b.rand()
	delay *= factor

	if delay < float64(minDelay) {
		return minDelay
	}
	return time.Duration(delay)
}

// MaxDelay returns the configured cap.
func (b *Backoff) MaxDelay() time.Duration {
	return b.cfg.MaxDelay
}
