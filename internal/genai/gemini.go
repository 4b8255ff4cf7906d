package genai

import (
	"context"
	"fmt"
	"sync"

	gemini "google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash-latest"

// geminiBackend creates the SDK client lazily because construction needs a
// context and may dial out.
type geminiBackend struct {
	apiKey      string
	model       string
	temperature float32

	once    sync.Once
	client  *gemini.Client
	initErr error
}

func newGeminiBackend(cfg Opts) (*geminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiBackend{apiKey: cfg.APIKey, model: model, temperature: float32(cfg.Temperature)}, nil
}

func (b *geminiBackend) name() string { return ProviderGemini }

func (b *geminiBackend) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	b.once.Do(func() {
		b.client, b.initErr = gemini.NewClient(ctx, &gemini.ClientConfig{
			APIKey:  b.apiKey,
			Backend: gemini.BackendGeminiAPI,
		})
	})
	if b.initErr != nil {
		return "", fmt.Errorf("gemini client init failed: %w", b.initErr)
	}

	temp := b.temperature
	config := &gemini.GenerateContentConfig{Temperature: &temp}
	if systemPrompt != "" {
		config.SystemInstruction = &gemini.Content{Parts: []*gemini.Part{{Text: systemPrompt}}}
	}

	result, err := b.client.Models.GenerateContent(ctx, b.model, gemini.Text(userPrompt), config)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", ErrNoChoicesReturned
	}
	return result.Text(), nil
}
