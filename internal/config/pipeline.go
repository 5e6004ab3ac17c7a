package config

import (
	"errors"
	"fmt"
	"time"
)

// StageBudget bounds a single model call made by one pipeline stage.
type StageBudget struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// PipelineConfig is built once and handed to the analysis pipeline by value.
// Nothing in the pipeline reads the environment.
type PipelineConfig struct {
	Model string

	Extraction     StageBudget
	Categorization StageBudget
	Summary        StageBudget

	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration

	ChunkSize        int
	ChunkOverlap     int
	MaxInputLength   int
	MaxChunks        int
	ThrottleDelay    time.Duration
	MinContentLength int
}

// Pipeline derives the immutable pipeline configuration from the loaded service config.
func (c *Config) Pipeline() PipelineConfig {
	return PipelineConfig{
		Model: c.OpenRouterModel,
		Extraction: StageBudget{
			Temperature: c.ExtractionTemperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     c.CallTimeout,
		},
		Categorization: StageBudget{
			Temperature: c.CategorizationTemperature,
			MaxTokens:   c.MaxTokens / 2,
			Timeout:     c.CallTimeout,
		},
		Summary: StageBudget{
			Temperature: c.SummaryTemperature,
			MaxTokens:   c.MaxTokens / 2,
			Timeout:     c.CallTimeout,
		},
		MaxRetries:       c.MaxRetries,
		BaseRetryDelay:   c.RetryBaseDelay,
		MaxRetryDelay:    c.RetryMaxDelay,
		ChunkSize:        c.ChunkSize,
		ChunkOverlap:     c.ChunkOverlap,
		MaxInputLength:   c.MaxInputLength,
		MaxChunks:        c.MaxChunks,
		ThrottleDelay:    c.ThrottleDelay,
		MinContentLength: 10,
	}
}

// DefaultPipelineConfig mirrors the environment defaults of Load.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Model:            "openai/gpt-4o-mini",
		Extraction:       StageBudget{Temperature: 0.2, MaxTokens: 4000, Timeout: 60 * time.Second},
		Categorization:   StageBudget{Temperature: 0.3, MaxTokens: 2000, Timeout: 60 * time.Second},
		Summary:          StageBudget{Temperature: 0.5, MaxTokens: 2000, Timeout: 60 * time.Second},
		MaxRetries:       3,
		BaseRetryDelay:   time.Second,
		MaxRetryDelay:    30 * time.Second,
		ChunkSize:        10000,
		MaxInputLength:   200000,
		MaxChunks:        20,
		ThrottleDelay:    500 * time.Millisecond,
		MinContentLength: 10,
	}
}

func (p PipelineConfig) Validate() error {
	var errs []error
	if p.Model == "" {
		errs = append(errs, errors.New("model name is required"))
	}
	if p.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max retries must be at least 1, got %d", p.MaxRetries))
	}
	if p.ChunkSize < 100 {
		errs = append(errs, fmt.Errorf("chunk size must be at least 100 characters, got %d", p.ChunkSize))
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize/2 {
		errs = append(errs, fmt.Errorf("chunk overlap must be in [0, chunk size / 2), got %d", p.ChunkOverlap))
	}
	if p.MaxChunks < 1 {
		errs = append(errs, fmt.Errorf("max chunks must be at least 1, got %d", p.MaxChunks))
	}
	if p.MaxInputLength < p.ChunkSize {
		errs = append(errs, fmt.Errorf("max input length %d is smaller than chunk size %d", p.MaxInputLength, p.ChunkSize))
	}
	for name, b := range map[string]StageBudget{
		"extraction":     p.Extraction,
		"categorization": p.Categorization,
		"summary":        p.Summary,
	} {
		if b.MaxTokens <= 0 {
			errs = append(errs, fmt.Errorf("%s max tokens must be positive", name))
		}
		if b.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("%s timeout must be positive", name))
		}
		if b.Temperature < 0 || b.Temperature > 2 {
			errs = append(errs, fmt.Errorf("%s temperature must be in [0, 2], got %v", name, b.Temperature))
		}
	}
	return errors.Join(errs...)
}
