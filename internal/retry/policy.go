// Package retry holds the single backoff policy shared by feed fetches,
// content fetches, assessment calls and channel sends.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy retries an operation up to MaxAttempts times, doubling the delay
// between attempts from BaseDelay and capping it at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default mirrors the feed monitor's historical settings: 3 attempts, 5s doubling.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 5 * time.Second, MaxDelay: 2 * time.Minute}
}

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, wait time.Duration)

// Permanent marks err so that Do stops retrying and returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Delays returns the waits between consecutive attempts.
func (p Policy) Delays() []time.Duration {
	b := p.backOff()
	attempts := p.attempts()
	out := make([]time.Duration, 0, attempts-1)
	for i := 1; i < attempts; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

// Do runs op until it succeeds, returns a Permanent error, the context ends,
// or MaxAttempts is reached. op receives the 1-based attempt number.
func Do[T any](ctx context.Context, p Policy, op func(attempt int) (T, error), notify Notify) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		return op(attempt)
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.attempts())),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}))
	}

	res, err := backoff.Retry(ctx, operation, opts...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return res, err
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(attempt int) error, notify Notify) error {
	_, err := Do(ctx, p, func(attempt int) (struct{}, error) {
		return struct{}{}, op(attempt)
	}, notify)
	return err
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Millisecond
	}
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval << 10
	}
	b.Reset()
	return b
}
