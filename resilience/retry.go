// Package resilience provides retry and circuit-breaking wrappers for
// adapter calls that may fail transiently — used around the LLM stage,
// the one recoverable stage in the turn pipeline.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/lookatitude/avatar-gateway/core"
)

// RetryPolicy configures Retry's attempt count and backoff schedule.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Zero is normalized to 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Zero is normalized to 30s.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the backoff after each retry. Zero is
	// normalized to 2.0.
	BackoffFactor float64

	// Jitter adds up to 50% randomness to each backoff to avoid thundering
	// herds when many turns retry at once.
	Jitter bool

	// RetryableErrors overrides which core.ErrorCode values are treated as
	// retryable. If empty, core.IsRetryable governs.
	RetryableErrors []core.ErrorCode
}

// DefaultRetryPolicy returns the policy used when callers don't need custom
// tuning: 3 attempts, 500ms initial backoff doubling up to 30s, with jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2.0
	}
	return p
}

func (p RetryPolicy) isRetryable(err error) bool {
	if len(p.RetryableErrors) == 0 {
		return core.IsRetryable(err)
	}
	var e *core.Error
	if ok := asCoreError(err, &e); ok {
		for _, code := range p.RetryableErrors {
			if e.Code == code {
				return true
			}
		}
	}
	return false
}

func asCoreError(err error, target **core.Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*core.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Retry invokes fn until it succeeds, a non-retryable error is returned, ctx
// is cancelled, or policy.MaxAttempts is exhausted. Backoff grows by
// BackoffFactor each attempt, capped at MaxBackoff, with optional jitter.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	policy = policy.normalize()

	var zero T
	backoff := policy.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !policy.isRetryable(err) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		wait := backoff
		if policy.Jitter {
			wait = time.Duration(float64(wait) * (0.5 + rand.Float64()*0.5))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * policy.BackoffFactor)
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
	return zero, lastErr
}
