package genai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

type ollamaBackend struct {
	client      *api.Client
	model       string
	temperature float64
}

func newOllamaBackend(cfg Opts) (*ollamaBackend, error) {
	host := cfg.BaseURL
	if host == "" {
		host = defaultOllamaHost
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &ollamaBackend{
		client:      api.NewClient(parsed, http.DefaultClient),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

func (b *ollamaBackend) name() string { return ProviderOllama }

func (b *ollamaBackend) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	stream := false
	messages := []api.Message{}
	if systemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: userPrompt})

	req := &api.ChatRequest{
		Model:    b.model,
		Messages: messages,
		Stream:   &stream,
		Options:  map[string]any{"temperature": b.temperature},
	}

	var response api.ChatResponse
	err := b.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return "", err
	}
	return response.Message.Content, nil
}
