// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Flat snake_case keys shared by the YAML file and HOOPSTAT_* env vars.
//   - New builds a Config with defaults; Load layers file and env on top.
//   - Validate enforces struct tag constraints via validator/v10.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// Provider endpoint and credentials.
	ProviderBaseURL string `koanf:"provider_base_url" validate:"required,url"`
	ProviderHost    string `koanf:"provider_host" validate:"required"`
	APIKey          string `koanf:"api_key"`

	// RequestTimeoutMS bounds a single provider HTTP round trip.
	RequestTimeoutMS int `koanf:"request_timeout_ms" validate:"gt=0"`

	// Retry policy applied to every provider call.
	RetryMaxAttempts    int     `koanf:"retry_max_attempts" validate:"gte=1"`
	RetryInitialDelayMS int     `koanf:"retry_initial_delay_ms" validate:"gt=0"`
	RetryBackoffFactor  float64 `koanf:"retry_backoff_factor" validate:"gte=1"`

	// Outbound rate limiting (requests per second and burst).
	RateLimitRPS   float64 `koanf:"rate_limit_rps" validate:"gt=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" validate:"gte=1"`

	// Circuit breaker trips once BreakerMinRequests have been seen in the
	// current window and the failure ratio reaches BreakerFailureRatio.
	BreakerMinRequests   uint32  `koanf:"breaker_min_requests" validate:"gte=1"`
	BreakerFailureRatio  float64 `koanf:"breaker_failure_ratio" validate:"gt=0,lte=1"`
	BreakerOpenTimeoutMS int     `koanf:"breaker_open_timeout_ms" validate:"gt=0"`

	// CacheSize bounds the number of cached provider responses.
	CacheSize int `koanf:"cache_size" validate:"gte=1"`

	// Artifact directories.
	CacheDir     string `koanf:"cache_dir" validate:"required"`
	ProcessedDir string `koanf:"processed_dir" validate:"required"`
	ExportDir    string `koanf:"export_dir" validate:"required"`

	// Feature engineering.
	ScalingMethod string `koanf:"scaling_method" validate:"oneof=standard minmax"`
	PCAComponents int    `koanf:"pca_components" validate:"gte=1"`

	// ValidationGate excludes records failing validation from enrichment and caching.
	ValidationGate bool `koanf:"validation_gate"`

	// RefreshSchedule is a cron expression; empty disables the refresher.
	RefreshSchedule string   `koanf:"refresh_schedule"`
	Watchlist       []string `koanf:"watchlist"`

	// Narrative summarizer backends. Groq is preferred when both keys are set.
	GroqAPIKey     string  `koanf:"groq_api_key"`
	OpenAIAPIKey   string  `koanf:"openai_api_key"`
	GroqModel      string  `koanf:"groq_model"`
	OpenAIModel    string  `koanf:"openai_model"`
	LLMMaxTokens   int     `koanf:"llm_max_tokens" validate:"gte=1"`
	LLMTemperature float64 `koanf:"llm_temperature" validate:"gte=0,lte=2"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		ProviderBaseURL:      "https://basketball-head.p.rapidapi.com",
		ProviderHost:         "basketball-head.p.rapidapi.com",
		RequestTimeoutMS:     10_000,
		RetryMaxAttempts:     3,
		RetryInitialDelayMS:  1_000,
		RetryBackoffFactor:   2.0,
		RateLimitRPS:         5,
		RateLimitBurst:       5,
		BreakerMinRequests:   5,
		BreakerFailureRatio:  0.6,
		BreakerOpenTimeoutMS: 30_000,
		CacheSize:            100,
		CacheDir:             "data/cache",
		ProcessedDir:         "data/processed",
		ExportDir:            "data/exports",
		ScalingMethod:        "standard",
		PCAComponents:        3,
		GroqModel:            "llama3-70b-8192",
		OpenAIModel:          "gpt-4o-mini",
		LLMMaxTokens:         1000,
		LLMTemperature:       0.7,
	}
}

// RequestTimeout returns the per-request provider timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// RetryInitialDelay returns the first retry wait.
func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialDelayMS) * time.Millisecond
}

// BreakerOpenTimeout returns how long the breaker stays open before probing.
func (c *Config) BreakerOpenTimeout() time.Duration {
	return time.Duration(c.BreakerOpenTimeoutMS) * time.Millisecond
}
