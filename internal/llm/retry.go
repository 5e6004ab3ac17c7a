package llm

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy describes how a model call is retried. It holds no per-call state.
type RetryPolicy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
	Retryable   func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxJitter:   time.Second,
		Retryable:   IsRetryable,
	}
}

// Backoff returns base * 2^(attempt-1) plus random jitter, capped at MaxDelay.
// attempt counts retries from 1.
func (p RetryPolicy) Backoff(attempt uint, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := uint(1); i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
	}
	if p.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// WithRetry runs fn under the policy and reports how many attempts were made.
// A 429 carrying a Retry-After value raises the base delay for the remaining
// attempts of this call.
func WithRetry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context, attempt uint) (T, error), onRetry func(attempt uint, err error, delay time.Duration)) (T, int, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	attempts := uint(1)
	if p.MaxAttempts > 0 {
		attempts = p.MaxAttempts
	}

	base := p.BaseDelay
	made := 0

	delayFn := func(n uint, err error, _ *retry.Config) time.Duration {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests && statusErr.RetryAfter > 0 {
			base = statusErr.RetryAfter
		}
		d := p.Backoff(n, base)
		if onRetry != nil {
			onRetry(n, err, d)
		}
		return d
	}

	result, err := retry.DoWithData(
		func() (T, error) {
			made++
			return fn(ctx, uint(made))
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.RetryIf(retryable),
		retry.DelayType(delayFn),
		retry.MaxDelay(p.MaxDelay),
		retry.LastErrorOnly(true),
	)
	return result, made, err
}
