package wstransport

import (
	"math/rand"
	"time"
)

// Reconnect delays
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 60 * time.Second
	jitterFactor   = 0.25
)

// backoff calculates exponentially increasing reconnect delays with jitter.
// Not safe for concurrent use; it is only used by the reconnect loop.
type backoff struct {
	current time.Duration
	initial time.Duration
	max     time.Duration
	rng     *rand.Rand
}

// Next returns the next delay and doubles the base delay up to the maximum
func (b *backoff) Next() time.Duration {
	delay := b.current + time.Duration(float64(b.current)*jitterFactor*b.rng.Float64())
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset to the initial delay after a successful connect
func (b *backoff) Reset() {
	b.current = b.initial
}

func newBackoff(initial time.Duration, max time.Duration) *backoff {
	if initial <= 0 {
		initial = InitialBackoff
	}
	if max < initial {
		max = initial
	}
	return &backoff{
		current: initial,
		initial: initial,
		max:     max,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}
