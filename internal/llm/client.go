package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/metrics"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

// ModelClient performs one prompt round trip against the completion endpoint.
type ModelClient interface {
	Complete(ctx context.Context, prompt Prompt, opts CallOptions) (*Completion, error)
}

type Prompt struct {
	System string
	User   string
}

// CallOptions are the stage-specific budgets for one call.
type CallOptions struct {
	Stage       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Completion struct {
	Content string
	Usage   *Usage
}

// TotalTokens is zero when the endpoint reported no usage.
func (c *Completion) TotalTokens() int {
	if c == nil || c.Usage == nil {
		return 0
	}
	if c.Usage.TotalTokens > 0 {
		return c.Usage.TotalTokens
	}
	return c.Usage.PromptTokens + c.Usage.CompletionTokens
}

type ChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	TopP             float64   `json:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
	Error   *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

type Choice struct {
	Message Message `json:"message"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ClientConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Retry         RetryPolicy
	ThrottleDelay time.Duration
	HTTPClient    *http.Client
}

// NewClientConfig derives client settings from the pipeline configuration.
func NewClientConfig(baseURL, apiKey string, p config.PipelineConfig) ClientConfig {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = uint(max(p.MaxRetries, 1))
	policy.BaseDelay = p.BaseRetryDelay
	policy.MaxDelay = p.MaxRetryDelay
	policy.MaxJitter = min(policy.MaxJitter, p.BaseRetryDelay)

	return ClientConfig{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		Model:         p.Model,
		Retry:         policy,
		ThrottleDelay: p.ThrottleDelay,
	}
}

// OpenRouterClient talks to an OpenAI-compatible chat completions endpoint.
// It is the only component in the pipeline that performs network I/O or sleeps.
type OpenRouterClient struct {
	endpoint string
	apiKey   string
	model    string
	retry    RetryPolicy
	limiter  *rate.Limiter
	client   *http.Client
	logger   *utils.Logger
	metrics  *metrics.Metrics
}

func NewOpenRouterClient(cfg ClientConfig, logger *utils.Logger, m *metrics.Metrics) *OpenRouterClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.ThrottleDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.ThrottleDelay), 1)
	}

	return &OpenRouterClient{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		retry:    cfg.Retry,
		limiter:  limiter,
		client:   httpClient,
		logger:   logger,
		metrics:  m,
	}
}

func (c *OpenRouterClient) Complete(ctx context.Context, prompt Prompt, opts CallOptions) (*Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &ModelCallFailed{Stage: opts.Stage, Err: err}
		}
	}

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxTokens,
		TopP:             1,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ModelCallFailed{Stage: opts.Stage, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	start := time.Now()
	completion, attempts, err := WithRetry(ctx, c.retry,
		func(ctx context.Context, attempt uint) (*Completion, error) {
			c.metrics.ObserveAttempt(opts.Stage)
			return c.attempt(ctx, jsonData, opts.Timeout)
		},
		func(attempt uint, err error, delay time.Duration) {
			c.logger.Warn("Model call attempt failed, retrying",
				"stage", opts.Stage,
				"attempt", attempt,
				"delay", delay.String(),
				"error", err)
		},
	)
	duration := time.Since(start)

	if err != nil {
		c.metrics.ObserveCall(opts.Stage, false, duration, 0)
		c.logger.Error("Model call failed", "stage", opts.Stage, "attempts", attempts, "error", err)
		return nil, &ModelCallFailed{Stage: opts.Stage, Attempts: attempts, Err: err}
	}

	c.metrics.ObserveCall(opts.Stage, true, duration, completion.TotalTokens())
	c.logger.Debug("Model call succeeded",
		"stage", opts.Stage,
		"attempts", attempts,
		"duration_ms", duration.Milliseconds(),
		"tokens", completion.TotalTokens())

	return completion, nil
}

func (c *OpenRouterClient) attempt(ctx context.Context, body []byte, timeout time.Duration) (*Completion, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/BerylCAtieno/document-task-extractor")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       utils.Truncate(string(respBody), 500),
		}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("completion endpoint error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyContent
	}

	return &Completion{
		Content: chatResp.Choices[0].Message.Content,
		Usage:   chatResp.Usage,
	}, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(v, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsModelCallFailed reports whether err came out of a ModelClient after retries.
func IsModelCallFailed(err error) bool {
	var mcf *ModelCallFailed
	return errors.As(err, &mcf)
}
