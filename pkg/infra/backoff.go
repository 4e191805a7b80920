package infra

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// jitterRatio spreads reconnect attempts of several replicas by up to +/-20%
const jitterRatio = 0.2

// Backoff computes jittered exponential delays for the broker reconnect loop
type Backoff struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	multiplier float64

	mu       sync.Mutex
	current  time.Duration
	attempts int
}

func NewBackoff(minDelay, maxDelay time.Duration, multiplier float64) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		multiplier: multiplier,
		current:    minDelay,
	}
}

// Next returns the delay before the next attempt, never below minDelay nor above maxDelay
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++

	jitter := time.Duration((rand.Float64()*2 - 1) * jitterRatio * float64(b.current))
	wait := min(max(b.current+jitter, b.minDelay), b.maxDelay)

	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.maxDelay)
	return wait
}

// Wait sleeps for the next delay. It returns the context error if canceled first
func (b *Backoff) Wait(ctx context.Context) (time.Duration, error) {
	wait := b.Next()

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return wait, ctx.Err()
	case <-t.C:
		return wait, nil
	}
}

// Reset is called once a connection has been established
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.minDelay
	b.attempts = 0
}

func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
