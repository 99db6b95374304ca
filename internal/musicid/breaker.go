package musicid

import (
	"sync"
	"time"
)

// BreakerState is the observable condition of one provider breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker is a per-provider circuit breaker. It opens after a number of
// failures inside a sliding window and lets a single probe through once the
// open period has elapsed. All methods are safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	provider  string
	threshold int
	window    time.Duration
	openFor   time.Duration

	failures []time.Time
	openedAt time.Time
	state    BreakerState
	probing  bool

	now func() time.Time
}

// NewBreaker builds a closed breaker. Zero parameters fall back to the
// 10 failures / 60 s / 5 min defaults.
func NewBreaker(provider string, threshold int, window, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	if openFor <= 0 {
		openFor = 5 * time.Minute
	}
	return &Breaker{
		provider:  provider,
		threshold: threshold,
		window:    window,
		openFor:   openFor,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// Provider returns the provider name this breaker guards.
func (b *Breaker) Provider() string {
	return b.provider
}

// Allow reports whether a call may proceed. While open it refuses everything
// until the open period elapses, then admits exactly one half-open probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		if b.now().Sub(b.openedAt) < b.openFor {
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return true
	}
}

// Success records a successful call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.probing = false
	b.failures = b.failures[:0]
}

// Failure records a failed call. A failed half-open probe reopens for a full
// period; in the closed state the sliding window decides.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == BreakerHalfOpen {
		b.open(now)
		return
	}

	b.failures = append(b.failures, now)
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
	if len(b.failures) >= b.threshold {
		b.open(now)
	}
}

// State returns the current breaker condition.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.openFor {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) open(now time.Time) {
	b.state = BreakerOpen
	b.openedAt = now
	b.probing = false
	b.failures = b.failures[:0]
}
