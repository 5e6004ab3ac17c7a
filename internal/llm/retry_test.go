package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_Exponential(t *testing.T) {
	p := RetryPolicy{MaxDelay: time.Minute}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1, 100*time.Millisecond))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2, 100*time.Millisecond))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3, 100*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0, 100*time.Millisecond))
}

func TestBackoff_CappedWithJitter(t *testing.T) {
	p := RetryPolicy{MaxDelay: time.Second, MaxJitter: 50 * time.Millisecond}

	for attempt := uint(1); attempt < 20; attempt++ {
		d := p.Backoff(attempt, 100*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &StatusError{StatusCode: 503}, true},
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"bad request", &StatusError{StatusCode: 400}, false},
		{"unauthorized", &StatusError{StatusCode: 401}, false},
		{"timeout", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"empty content", ErrEmptyContent, true},
		{"wrapped server error", errors.Join(errors.New("ctx"), &StatusError{StatusCode: 500}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithRetry_CountsAttempts(t *testing.T) {
	got, attempts, err := WithRetry(context.Background(), fastPolicy(4),
		func(ctx context.Context, attempt uint) (string, error) {
			if attempt < 4 {
				return "", &StatusError{StatusCode: http.StatusInternalServerError}
			}
			return "ok", nil
		}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 4, attempts)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	_, attempts, err := WithRetry(context.Background(), fastPolicy(4),
		func(ctx context.Context, attempt uint) (string, error) {
			return "", &StatusError{StatusCode: http.StatusNotFound}
		}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestWithRetry_RetryAfterRaisesBase(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second}

	var delays []time.Duration
	_, _, err := WithRetry(context.Background(), p,
		func(ctx context.Context, attempt uint) (int, error) {
			switch attempt {
			case 1:
				return 0, &StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 20 * time.Millisecond}
			case 2:
				return 0, &StatusError{StatusCode: http.StatusBadGateway}
			}
			return 1, nil
		},
		func(attempt uint, err error, delay time.Duration) {
			delays = append(delays, delay)
		})

	require.NoError(t, err)
	require.Len(t, delays, 2)
	assert.GreaterOrEqual(t, delays[0], 20*time.Millisecond)
	// The raised base keeps applying to later retries of the same call.
	assert.GreaterOrEqual(t, delays[1], 20*time.Millisecond)
}
