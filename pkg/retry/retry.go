// Package retry runs collaborator calls under a bounded attempt budget with
// a per-attempt timeout and capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted marks an error returned after the attempt budget ran out.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts    int
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Backoff returns the wait before attempt n+1 (n counts from 1).
func (p Policy) Backoff(n int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	shift := min(max(n-1, 0), 30)
	d := p.InitialBackoff << uint(shift)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Notify observes failed attempts before the backoff wait.
type Notify func(attempt int, err error, wait time.Duration)

// Do calls op until it succeeds, returns a Permanent error, or the policy's
// attempts run out. Each attempt gets its own timeout derived from ctx.
// Exhaustion returns the last error joined with ErrExhausted.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, notify Notify) error {
	attempts := max(p.MaxAttempts, 1)

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := runAttempt(ctx, p.Timeout, op)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		last = err

		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if notify != nil {
			notify(attempt, err, wait)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", last, ctx.Err())
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, last)
}

func runAttempt(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(actx)
}
