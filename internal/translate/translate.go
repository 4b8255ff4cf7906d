// Package translate localizes bot messages and detects the language of user
// input. Translation and detection are prompt-based on top of a genai.Generator.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/BTreeMap/ResumePipe/internal/genai"
)

// Supported session languages.
const (
	English = "en"
	Sinhala = "si"
)

var (
	// ErrNoGenerator is returned when the service has no backing model.
	ErrNoGenerator = errors.New("translation backend not configured")
	// ErrUndetermined is returned when detection yields no usable language code.
	ErrUndetermined = errors.New("language could not be determined")
)

// Service translates English text and detects the language of arbitrary text.
type Service interface {
	// Translate renders English text in the target language.
	Translate(ctx context.Context, text, lang string) (string, error)
	// Detect returns the ISO 639-1 code of text's language.
	Detect(ctx context.Context, text string) (string, error)
}

// NormalizeLang reduces a language tag ("si-LK", "EN") to its base code.
// Unparseable input yields "".
func NormalizeLang(tag string) string {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return ""
	}
	base, conf := t.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// LanguageName returns the English name of a language code.
func LanguageName(code string) string {
	t, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return code
}

// GenAIService implements Service with a text-generation model.
type GenAIService struct {
	gen genai.Generator
}

var _ Service = (*GenAIService)(nil)

// NewGenAIService creates a prompt-based translator.
func NewGenAIService(gen genai.Generator) *GenAIService {
	return &GenAIService{gen: gen}
}

// Translate translates English text into lang. English targets are returned as-is.
func (s *GenAIService) Translate(ctx context.Context, text, lang string) (string, error) {
	lang = NormalizeLang(lang)
	if lang == "" || lang == English || strings.TrimSpace(text) == "" {
		return text, nil
	}
	if s.gen == nil {
		return "", ErrNoGenerator
	}
	system := "You are a translation engine. Translate the user's message from English to " + LanguageName(lang) +
		". Keep line breaks, emoji, numbers, email addresses, and commands such as /start unchanged. " +
		"Reply with the translation only."
	out, err := s.gen.GeneratePrompt(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", lang, err)
	}
	slog.Debug("GenAIService.Translate: translated", "lang", lang, "length", len(out))
	return out, nil
}

// Detect asks the model for the ISO 639-1 code of text.
func (s *GenAIService) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrUndetermined
	}
	if s.gen == nil {
		return "", ErrNoGenerator
	}
	system := "Identify the language of the user's message. Reply with only its two-letter ISO 639-1 code."
	out, err := s.gen.GeneratePrompt(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}
	code := NormalizeLang(strings.Trim(strings.TrimSpace(out), ".`'\""))
	if code == "" || code == "und" {
		return "", fmt.Errorf("%w: %q", ErrUndetermined, out)
	}
	return code, nil
}
