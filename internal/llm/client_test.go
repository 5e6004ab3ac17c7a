package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

func fastPolicy(attempts uint) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   IsRetryable,
	}
}

func newTestClient(t *testing.T, url string, attempts uint) *OpenRouterClient {
	t.Helper()
	return NewOpenRouterClient(ClientConfig{
		BaseURL: url,
		APIKey:  "test-key",
		Model:   "test/model",
		Retry:   fastPolicy(attempts),
	}, utils.NewTestLogger(io.Discard), nil)
}

const okBody = `{"choices":[{"message":{"role":"assistant","content":"{\"tasks\":[]}"}}],"usage":{"prompt_tokens":12,"completion_tokens":8,"total_tokens":20}}`

var testPrompt = Prompt{System: "system prompt", User: "user prompt"}

func testOpts() CallOptions {
	return CallOptions{Stage: "extraction", Temperature: 0.2, MaxTokens: 500, Timeout: time.Second}
}

func TestComplete_SendsWireRequest(t *testing.T) {
	var got ChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	completion, err := newTestClient(t, srv.URL, 1).Complete(context.Background(), testPrompt, testOpts())
	require.NoError(t, err)

	assert.Equal(t, `{"tasks":[]}`, completion.Content)
	assert.Equal(t, 20, completion.TotalTokens())
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "test/model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: "system prompt"}, got.Messages[0])
	assert.Equal(t, Message{Role: "user", Content: "user prompt"}, got.Messages[1])
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	assert.Equal(t, 500, got.MaxTokens)
	assert.InDelta(t, 1.0, got.TopP, 1e-9)
}

func TestComplete_RetriesServerErrorsUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	completion, err := newTestClient(t, srv.URL, 4).Complete(context.Background(), testPrompt, testOpts())
	require.NoError(t, err)

	assert.Equal(t, `{"tasks":[]}`, completion.Content)
	assert.Equal(t, int32(4), calls.Load())
}

func TestComplete_ServerErrorsExhaustAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Complete(context.Background(), testPrompt, testOpts())
	require.Error(t, err)

	var mcf *ModelCallFailed
	require.ErrorAs(t, err, &mcf)
	assert.Equal(t, 3, mcf.Attempts)
	assert.Equal(t, "extraction", mcf.Stage)
	assert.Equal(t, int32(3), calls.Load())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestComplete_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 4).Complete(context.Background(), testPrompt, testOpts())
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
	var mcf *ModelCallFailed
	require.ErrorAs(t, err, &mcf)
	assert.Equal(t, 1, mcf.Attempts)
}

func TestComplete_RateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Complete(context.Background(), testPrompt, testOpts())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_EmptyContentIsFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 2).Complete(context.Background(), testPrompt, testOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_NoChoicesIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 1).Complete(context.Background(), testPrompt, testOpts())
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestComplete_PerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	opts := testOpts()
	opts.Timeout = 20 * time.Millisecond

	_, err := newTestClient(t, srv.URL, 2).Complete(context.Background(), testPrompt, opts)
	require.Error(t, err)
	assert.True(t, IsModelCallFailed(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_CallerCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv.URL, 5).Complete(ctx, testPrompt, testOpts())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(future), 50*time.Minute)
}

func TestNewClientConfig(t *testing.T) {
	p := config.DefaultPipelineConfig()
	p.MaxRetries = 4
	p.BaseRetryDelay = 200 * time.Millisecond

	cfg := NewClientConfig("https://example.test/api/v1", "key", p)

	assert.Equal(t, uint(4), cfg.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.MaxJitter)
	assert.Equal(t, p.MaxRetryDelay, cfg.Retry.MaxDelay)
	assert.Equal(t, p.Model, cfg.Model)
	assert.Equal(t, p.ThrottleDelay, cfg.ThrottleDelay)
	assert.NotNil(t, cfg.Retry.Retryable)
}
