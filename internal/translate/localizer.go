package translate

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/ResumePipe/internal/cache"
)

//go:embed static_si.json
var staticSinhala []byte

// Localizer renders English bot messages in a session's language. Lookups go
// through the built-in table, then the cache, then the Service. Whenever all
// of them fail the English text is returned.
type Localizer struct {
	svc    Service
	cache  *cache.TranslationCache
	static map[string]map[string]string
}

// NewLocalizer creates a Localizer. svc and c may be nil.
func NewLocalizer(svc Service, c *cache.TranslationCache) (*Localizer, error) {
	si := map[string]string{}
	if err := json.Unmarshal(staticSinhala, &si); err != nil {
		return nil, fmt.Errorf("failed to load built-in Sinhala table: %w", err)
	}
	return &Localizer{
		svc:    svc,
		cache:  c,
		static: map[string]map[string]string{Sinhala: si},
	}, nil
}

// Localize returns text in lang.
func (l *Localizer) Localize(ctx context.Context, text, lang string) string {
	lang = NormalizeLang(lang)
	if l == nil || text == "" || lang == "" || lang == English {
		return text
	}
	if v, ok := l.static[lang][text]; ok {
		return v
	}
	if l.cache != nil {
		if v, ok := l.cache.Get(text, lang); ok {
			return v
		}
	}
	if l.svc == nil {
		return text
	}
	v, err := l.svc.Translate(ctx, text, lang)
	if err != nil || v == "" {
		slog.Warn("Localizer.Localize: translation failed, sending English", "lang", lang, "error", err)
		return text
	}
	if l.cache != nil {
		l.cache.Put(text, lang, v)
	}
	return v
}

// Known reports whether text has a built-in translation for lang.
func (l *Localizer) Known(text, lang string) bool {
	_, ok := l.static[NormalizeLang(lang)][text]
	return ok
}
