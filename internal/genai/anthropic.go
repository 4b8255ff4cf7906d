package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

type anthropicBackend struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

func newAnthropicBackend(cfg Opts) (*anthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	reqOpts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, anthropicoption.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicBackend{
		client:      anthropic.NewClient(reqOpts...),
		model:       anthropic.Model(model),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

func (b *anthropicBackend) name() string { return ProviderAnthropic }

func (b *anthropicBackend) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       b.model,
		MaxTokens:   b.maxTokens,
		Temperature: anthropic.Float(b.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", ErrNoChoicesReturned
	}

	var out strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			out.WriteString(block.AsText().Text)
		}
	}
	return out.String(), nil
}
