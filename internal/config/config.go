package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string
	LogFile     string

	// S3
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// OpenRouter
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string

	// Pipeline stage budgets
	ExtractionTemperature     float64
	CategorizationTemperature float64
	SummaryTemperature        float64
	MaxTokens                 int
	CallTimeout               time.Duration

	// Retry
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Chunking
	ChunkSize      int
	ChunkOverlap   int
	MaxInputLength int
	MaxChunks      int
	ThrottleDelay  time.Duration

	// Upload limits
	MaxFileSize int64
}

// Load reads the environment and validates it for running analyses.
func Load() (*Config, error) {
	cfg := FromEnv()

	if cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	if err := cfg.Pipeline().Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv reads the environment with defaults and no validation.
func FromEnv() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", "data/documents.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:      getEnv("S3_BUCKET_NAME", "documents"),
		S3UseSSL:          getEnv("S3_USE_SSL", "false") == "true",
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		MaxFileSize:       int64(getEnvInt("MAX_FILE_SIZE", 5*1024*1024)),

		ExtractionTemperature:     getEnvFloat("LLM_EXTRACTION_TEMPERATURE", 0.2),
		CategorizationTemperature: getEnvFloat("LLM_CATEGORIZATION_TEMPERATURE", 0.3),
		SummaryTemperature:        getEnvFloat("LLM_SUMMARY_TEMPERATURE", 0.5),
		MaxTokens:                 getEnvInt("LLM_MAX_TOKENS", 4000),
		CallTimeout:               getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		MaxRetries:     getEnvInt("LLM_MAX_RETRIES", 3),
		RetryBaseDelay: getEnvDuration("LLM_RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:  getEnvDuration("LLM_RETRY_MAX_DELAY", 30*time.Second),

		ChunkSize:      getEnvInt("CHUNK_SIZE", 10000),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 0),
		MaxInputLength: getEnvInt("MAX_INPUT_LENGTH", 200000),
		MaxChunks:      getEnvInt("MAX_CHUNKS", 20),
		ThrottleDelay:  getEnvDuration("LLM_THROTTLE_DELAY", 500*time.Millisecond),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvDuration accepts Go duration strings ("45s") or a bare number of milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
