// Package backoff implements a bounded, fixed-step retry policy:
// the delay grows by a constant step per attempt, is capped, and the
// number of attempts is finite.
package backoff

import (
	"context"
	"time"
)

const (
	defaultStep        = 1 * time.Second
	defaultCap         = 5 * time.Second
	defaultMaxAttempts = 10
)

// Policy describes bounded-attempts, bounded-delay retries.
type Policy struct {
	step        time.Duration
	cap         time.Duration
	maxAttempts int
}

// Option configures a Policy.
type Option func(*Policy)

// WithStep sets the per-attempt delay increment.
func WithStep(d time.Duration) Option {
	return func(p *Policy) {
		p.step = d
	}
}

// WithCap sets the maximum delay between attempts.
func WithCap(d time.Duration) Option {
	return func(p *Policy) {
		p.cap = d
	}
}

// WithMaxAttempts sets the number of retry attempts.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		p.maxAttempts = n
	}
}

// New creates a Policy with default values and optional overrides.
func New(opts ...Option) *Policy {
	p := &Policy{
		step:        defaultStep,
		cap:         defaultCap,
		maxAttempts: defaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// MaxAttempts returns the attempt bound.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Delay returns the wait before the given attempt, counted from 1.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * p.step
	if d > p.cap {
		d = p.cap
	}
	return d
}

// Do runs fn until it succeeds, the attempts are exhausted, or ctx is
// cancelled. The first call happens immediately; every retry waits
// Delay(attempt).
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error

	for attempt := 0; attempt <= p.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay(attempt)):
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
	}

	return err
}

// DoWithData runs fn with retries and returns its value.
func DoWithData[T any](p *Policy, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
