package resilient

import (
	"context"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxAttempts includes the first try.
	DefaultMaxAttempts = 2
	// DefaultInitialDelay is the pause after the first failed attempt.
	DefaultInitialDelay = 2 * time.Second
	// DefaultMaxDelay caps every pause.
	DefaultMaxDelay = 180 * time.Second
	// DefaultMultiplier grows the pause between successive attempts.
	DefaultMultiplier = 5.0
)

// NotifyFunc observes a failed attempt before the policy sleeps for next.
type NotifyFunc func(attempt int, err error, next time.Duration)

// RetryPolicy is a bounded exponential backoff. It is a value: copies are
// independent and a policy can be shared by any number of concurrent calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialDelay is the pause after attempt 1 fails.
	InitialDelay time.Duration
	// MaxDelay caps every pause.
	MaxDelay time.Duration
	// Multiplier grows the pause after each further failure. Must be > 1.
	Multiplier float64
	// Retryable decides whether a failure may be retried at all.
	// Defaults to llm.IsTransient.
	Retryable func(error) bool
	// Notify, if set, observes each failed attempt that will be retried.
	Notify NotifyFunc
}

// DefaultRetryPolicy returns a policy that does not try too hard.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		Retryable:    llm.IsTransient,
	}
}

// Validate checks the policy parameters.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("retry policy: max attempts must be at least 1, got %d", p.MaxAttempts)
	case p.InitialDelay <= 0:
		return fmt.Errorf("retry policy: initial delay must be positive, got %v", p.InitialDelay)
	case p.MaxDelay < p.InitialDelay:
		return fmt.Errorf("retry policy: max delay %v is below initial delay %v", p.MaxDelay, p.InitialDelay)
	case p.Multiplier <= 1:
		return fmt.Errorf("retry policy: multiplier must be greater than 1, got %v", p.Multiplier)
	}
	return nil
}

// Delay returns the pause taken after the given attempt fails:
// min(MaxDelay, InitialDelay * Multiplier^(attempt-1)), grown one step at a
// time with truncation so it matches the backoff actually slept.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		if float64(d) >= float64(p.MaxDelay)/p.Multiplier {
			return p.MaxDelay
		}
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return min(d, p.MaxDelay)
}

// newBackOff builds a fresh, jitter-free backoff bounded by MaxAttempts and ctx.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.Multiplier = p.Multiplier
	eb.MaxInterval = p.MaxDelay
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
}

// Retry runs op under policy p. It returns the result of the first successful
// attempt, or the last error once a failure is not retryable or MaxAttempts is
// reached, together with the number of attempts made. If ctx ends while an
// attempt or a pause is in flight the returned error wraps ctx.Err().
func Retry[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, int, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, 0, err
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = llm.IsTransient
	}

	attempts := 0
	var lastErr error
	operation := func() (T, error) {
		attempts++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if llm.IsCanceled(err) || ctx.Err() != nil || !retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	var notify backoff.Notify
	if p.Notify != nil {
		notify = func(err error, next time.Duration) {
			p.Notify(attempts, err, next)
		}
	}

	result, err := backoff.RetryNotifyWithData(operation, p.newBackOff(ctx), notify)
	if err == nil {
		return result, attempts, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !llm.IsCanceled(err) {
		return zero, attempts, fmt.Errorf("%w (last error: %v)", ctxErr, err)
	}
	if llm.IsCanceled(err) && lastErr != nil && !llm.IsCanceled(lastErr) {
		// Canceled while sleeping: keep the failure that caused the pause visible.
		return zero, attempts, fmt.Errorf("%w (last error: %v)", err, lastErr)
	}
	return zero, attempts, err
}
