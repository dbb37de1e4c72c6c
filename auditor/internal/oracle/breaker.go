package oracle

import (
	"context"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // calls pass through
	BreakerOpen                         // calls rejected
	BreakerHalfOpen                     // probing
)

// ErrCircuitOpen is returned while the breaker rejects calls.
type ErrCircuitOpen struct{}

func (e *ErrCircuitOpen) Error() string { return "oracle: circuit open" }

// Breaker stops hammering an oracle that keeps failing. After threshold
// consecutive failures it rejects calls for reset, then half-opens: the
// next success closes it, the next failure reopens it.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	threshold   int
	reset       time.Duration
	lastFailure time.Time
	now         func() time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(threshold int, reset time.Duration) *Breaker {
	return &Breaker{threshold: threshold, reset: reset, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state != BreakerOpen
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.state = BreakerClosed
		b.failures = 0
		return
	}
	b.lastFailure = b.now()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = BreakerOpen
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
	}
}

// maybeHalfOpen must be called with mu held.
func (b *Breaker) maybeHalfOpen() {
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.reset {
		b.state = BreakerHalfOpen
	}
}

// WithBreaker guards calls with b.
func WithBreaker(b *Breaker) Middleware {
	return func(next Oracle) Oracle {
		return Func(func(ctx context.Context, p Prompt) (string, error) {
			if !b.allow() {
				return "", &ErrCircuitOpen{}
			}
			reply, err := next.Complete(ctx, p)
			b.record(err)
			return reply, err
		})
	}
}
