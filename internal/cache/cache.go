// Package cache provides the bounded translation cache shared by the localizer.
//
// Entries are kept in insertion order; once the cache grows past its limit the
// oldest entries are evicted first. The cache is persisted as a single JSON
// object whose key order matches insertion order, so eviction order survives a
// restart.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/elliotchance/orderedmap/v3"
)

// DefaultMaxEntries is the entry cap used when none is configured.
const DefaultMaxEntries = 1000

// Opts holds configuration options for the translation cache.
type Opts struct {
	Path       string // JSON file backing the cache; empty keeps it in memory only
	MaxEntries int
}

// Option defines a configuration option for the translation cache.
type Option func(*Opts)

// WithPath sets the JSON file the cache loads from and saves to.
func WithPath(path string) Option {
	return func(o *Opts) { o.Path = path }
}

// WithMaxEntries caps the number of cached translations.
func WithMaxEntries(n int) Option {
	return func(o *Opts) { o.MaxEntries = n }
}

// TranslationCache maps (text, language) pairs to translated text.
type TranslationCache struct {
	mu         sync.Mutex
	entries    *orderedmap.OrderedMap[string, string]
	path       string
	maxEntries int
	dirty      bool
}

// NewTranslationCache creates an empty cache. Call Load to populate it from disk.
func NewTranslationCache(opts ...Option) *TranslationCache {
	cfg := Opts{MaxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &TranslationCache{
		entries:    orderedmap.NewOrderedMap[string, string](),
		path:       cfg.Path,
		maxEntries: cfg.MaxEntries,
	}
}

// Key builds the cache key for a text and target language: the compact JSON
// encoding of the pair.
func Key(text, lang string) string {
	b, _ := json.Marshal([]string{text, lang})
	return string(b)
}

// Get returns the cached translation, if any.
func (c *TranslationCache) Get(text, lang string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(Key(text, lang))
}

// Put stores a translation. Re-storing an existing key moves it to the newest
// position. When the cache exceeds its cap the oldest entries are evicted.
func (c *TranslationCache) Put(text, lang, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(Key(text, lang), value)
	c.dirty = true
}

func (c *TranslationCache) setLocked(key, value string) {
	c.entries.Delete(key)
	c.entries.Set(key, value)
	for c.entries.Len() > c.maxEntries {
		oldest := c.entries.Front()
		if oldest == nil {
			break
		}
		slog.Debug("TranslationCache.evict: dropping oldest entry", "key", oldest.Key)
		c.entries.Delete(oldest.Key)
	}
}

// Len returns the number of cached entries.
func (c *TranslationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Keys returns cache keys from oldest to newest.
func (c *TranslationCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.entries.Len())
	for el := c.entries.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	return keys
}

// Load replaces the cache contents with the file at the configured path.
// A missing file leaves the cache empty and is not an error.
func (c *TranslationCache) Load() error {
	if c.path == "" {
		return nil
	}
	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("TranslationCache.Load: no cache file yet", "path", c.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open translation cache %s: %w", c.path, err)
	}
	defer f.Close()

	loaded, err := decodeOrdered(f)
	if err != nil {
		return fmt.Errorf("failed to decode translation cache %s: %w", c.path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.NewOrderedMap[string, string]()
	for _, kv := range loaded {
		c.setLocked(kv[0], kv[1])
	}
	c.dirty = false
	slog.Info("TranslationCache.Load: loaded", "path", c.path, "entries", c.entries.Len())
	return nil
}

// Save writes the cache to the configured path atomically.
func (c *TranslationCache) Save() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	data, err := c.encodeLocked()
	count := c.entries.Len()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode translation cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write translation cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace translation cache: %w", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	slog.Debug("TranslationCache.Save: saved", "path", c.path, "entries", count)
	return nil
}

// Dirty reports whether there are unsaved changes.
func (c *TranslationCache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// encodeLocked writes a JSON object in insertion order. encoding/json sorts map
// keys, so the object is assembled by hand.
func (c *TranslationCache) encodeLocked() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for el := c.entries.Front(); el != nil; el = el.Next() {
		k, err := json.Marshal(el.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(el.Value)
		if err != nil {
			return nil, err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteString("\n  ")
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(v)
	}
	if !first {
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// decodeOrdered reads a flat JSON object of strings, keeping key order.
func decodeOrdered(r io.Reader) ([][2]string, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var out [][2]string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		out = append(out, [2]string{key, value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}
