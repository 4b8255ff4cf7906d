// Package genai provides text generation for ResumePipe.
//
// A Client fronts one of several model providers (OpenAI, Anthropic, Gemini or
// a local Ollama server) behind a single GeneratePrompt call. Résumé-specific
// operations built on top of it live in Enhancer.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Provider names accepted by WithProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// Defaults applied when options are not given.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

var (
	// ErrNoChoicesReturned is returned when a provider answers with no content.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrMissingAPIKey is returned when a hosted provider has no API key.
	ErrMissingAPIKey = errors.New("API key not set")
	// ErrUnknownProvider is returned for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown genai provider")
)

// Generator produces text from a system and a user prompt.
type Generator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// completer is implemented by each provider backend.
type completer interface {
	complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	name() string
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // custom endpoint (OpenAI-compatible gateways, Ollama host)
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithProvider selects the model provider.
func WithProvider(provider string) Option {
	return func(o *Opts) { o.Provider = strings.ToLower(strings.TrimSpace(provider)) }
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithBaseURL points the provider at a custom endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps a provider backend.
type Client struct {
	backend completer
	timeout time.Duration
}

var _ Generator = (*Client)(nil)

// NewClient builds a client for the configured provider. For OpenAI the key
// falls back to the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Provider:    ProviderOpenAI,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	slog.Debug("genai.NewClient: options set", "provider", cfg.Provider, "model", cfg.Model, "APIKey_set", cfg.APIKey != "", "base_url", cfg.BaseURL)

	var (
		backend completer
		err     error
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		backend, err = newOpenAIBackend(cfg)
	case ProviderAnthropic:
		backend, err = newAnthropicBackend(cfg)
	case ProviderGemini:
		backend, err = newGeminiBackend(cfg)
	case ProviderOllama:
		backend, err = newOllamaBackend(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &Client{backend: backend, timeout: cfg.Timeout}, nil
}

// GeneratePrompt generates a response based on the provided system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.backend.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		slog.Error("Client.GeneratePrompt: generation failed", "provider", c.backend.name(), "error", err, "elapsed", time.Since(start))
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("Client.GeneratePrompt: generated", "provider", c.backend.name(), "length", len(out), "elapsed", time.Since(start))
	return out, nil
}

// Provider returns the active provider name.
func (c *Client) Provider() string {
	return c.backend.name()
}
