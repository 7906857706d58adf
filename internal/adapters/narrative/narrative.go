// Package narrative asks a chat-completions backend for free-text summaries.
// The backend is chosen once at construction from the configured keys.
package narrative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/hoopstat/pkg/logger"
)

var (
	// ErrNoBackend is returned when no API key is configured.
	ErrNoBackend = errors.New("no narrative backend configured")
	// ErrEmptyCompletion is returned when the backend answers without content.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Backend identifies the chat-completions provider.
type Backend int

const (
	BackendNone Backend = iota
	BackendGroq
	BackendOpenAI
)

func (b Backend) String() string {
	switch b {
	case BackendGroq:
		return "groq"
	case BackendOpenAI:
		return "openai"
	default:
		return "none"
	}
}

const (
	groqEndpoint   = "https://api.groq.com/openai/v1/chat/completions"
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	systemPrompt   = "You are an advanced basketball performance analyst."
)

// Summarizer turns a prompt into prose.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Config carries backend credentials and generation settings.
type Config struct {
	GroqAPIKey   string
	OpenAIAPIKey string
	GroqModel    string
	OpenAIModel  string
	MaxTokens    int
	Temperature  float64
}

// Resolve picks Groq when its key is set, else OpenAI, else None.
func Resolve(cfg Config) Backend {
	switch {
	case strings.TrimSpace(cfg.GroqAPIKey) != "":
		return BackendGroq
	case strings.TrimSpace(cfg.OpenAIAPIKey) != "":
		return BackendOpenAI
	default:
		return BackendNone
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithEndpoint overrides the chat-completions URL of the resolved backend.
func WithEndpoint(u string) Option {
	return func(c *Client) { c.endpoint = u }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client is a Summarizer bound to one backend.
type Client struct {
	backend     Backend
	apiKey      string
	model       string
	endpoint    string
	maxTokens   int
	temperature float64
	http        *http.Client
	log         logger.Logger
}

var _ Summarizer = (*Client)(nil)

// New resolves the backend from cfg and builds a Client for it.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		backend:     Resolve(cfg),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		http:        &http.Client{Timeout: 60 * time.Second},
		log:         logger.Nop(),
	}
	switch c.backend {
	case BackendGroq:
		c.apiKey, c.model, c.endpoint = cfg.GroqAPIKey, cfg.GroqModel, groqEndpoint
	case BackendOpenAI:
		c.apiKey, c.model, c.endpoint = cfg.OpenAIAPIKey, cfg.OpenAIModel, openAIEndpoint
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend reports which backend was resolved.
func (c *Client) Backend() Backend { return c.backend }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Summarize sends prompt to the backend and returns the first completion.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	if c.backend == BackendNone {
		return "", ErrNoBackend
	}

	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", c.backend, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s read: %w", c.backend, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status code: %d", c.backend, resp.StatusCode)
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%s decode: %w", c.backend, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	c.log.Debug(ctx, "narrative generated",
		logger.String("backend", c.backend.String()),
		logger.String("model", c.model))
	return out.Choices[0].Message.Content, nil
}
