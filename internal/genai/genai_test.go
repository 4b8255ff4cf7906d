package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

// fakeCompleter is a completer returning canned output.
type fakeCompleter struct {
	out string
	err error
}

func (f fakeCompleter) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.out, f.err
}

func (f fakeCompleter) name() string { return "fake" }

func TestGeneratePrompt_Success(t *testing.T) {
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "  Hello World \n"}},
		},
	}
	mock := &mockChatService{resp: mockResp}
	client := &Client{backend: &openAIBackend{chat: mock, model: "gpt-4o-mini"}}
	out, err := client.GeneratePrompt(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.params.Messages))
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{backend: &openAIBackend{chat: &mockChatService{err: errors.New("service failure")}}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	client := &Client{backend: &openAIBackend{chat: &mockChatService{resp: mockResp}}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestGeneratePrompt_BlankOutput(t *testing.T) {
	client := &Client{backend: fakeCompleter{out: "   "}}
	if _, err := client.GeneratePrompt(context.Background(), "sys", "usr"); !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned for blank output, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.Provider() != ProviderOpenAI {
		t.Errorf("expected default provider openai, got %s", cli.Provider())
	}
}

func TestNewClient_KeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	if _, err := NewClient(WithProvider("OpenAI")); err != nil {
		t.Fatalf("expected env key to be used, got %v", err)
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(WithProvider("mystery"))
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewClient_Ollama(t *testing.T) {
	cli, err := NewClient(WithProvider(ProviderOllama), WithBaseURL("http://127.0.0.1:11434"))
	if err != nil {
		t.Fatalf("ollama needs no key, got %v", err)
	}
	if cli.Provider() != ProviderOllama {
		t.Errorf("expected ollama provider, got %s", cli.Provider())
	}
}
