// Package retry runs fallible calls with exponential backoff and full jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy bounds a retry loop. A zero MaxAttempts means attempts are bounded
// only by MaxElapsed; at least one of the two must be set.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	MaxElapsed  time.Duration
	// Notify is called before each sleep.
	Notify func(attempt int, err error, wait time.Duration)
}

// Default is the policy used for store writes: 100ms base, capped at 5s, 8 attempts.
func Default() Policy {
	return Policy{
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		MaxAttempts: 8,
	}
}

// ExhaustedError is returned when the policy runs out of attempts or time.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, or the policy is
// exhausted. Permanent errors are returned unwrapped.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.MaxAttempts <= 0 && p.MaxElapsed <= 0 {
		p.MaxAttempts = 1
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		wait := Backoff(p.BaseDelay, p.MaxDelay, attempt)
		if p.MaxElapsed > 0 && time.Since(start)+wait > p.MaxElapsed {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}
		if p.Notify != nil {
			p.Notify(attempt, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Backoff returns a full-jitter delay for the given 1-based attempt:
// uniform in [0, min(max, base*2^(attempt-1))].
func Backoff(base, max time.Duration, attempt int) time.Duration {
	ceiling := base
	for i := 1; i < attempt && ceiling < max; i++ {
		ceiling *= 2
	}
	if ceiling > max {
		ceiling = max
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}
