// Package i18n holds the English and Hindi UI strings and translates HTML
// documents that mark their text with data-translate attributes.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/loykin/krishid/internal/store"
)

//go:embed locales/*.json
var locales embed.FS

// DefaultLanguage is used when nothing else is known, and as the lookup fallback.
const DefaultLanguage = "en"

// ErrUnknownLanguage is returned by Switch for a language without a catalog.
var ErrUnknownLanguage = errors.New("unknown language")

// Language describes a supported UI language.
type Language struct {
	Code  string `json:"code"`
	Label string `json:"label"` // short label for the selector button
	Name  string `json:"name"`
	Voice string `json:"voice"` // speech synthesis locale
}

var languages = []Language{
	{Code: "en", Label: "EN", Name: "English", Voice: "en-US"},
	{Code: "hi", Label: "हि", Name: "हिन्दी", Voice: "hi-IN"},
}

// Languages returns the supported languages in selector order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

func language(code string) Language {
	for _, l := range languages {
		if l.Code == code {
			return l
		}
	}
	return languages[0]
}

// Label returns the selector label for code, "EN" when unknown.
func Label(code string) string { return language(code).Label }

// Voice returns the speech locale for code, "en-US" when unknown.
func Voice(code string) string { return language(code).Voice }

// Catalog maps translation keys to strings.
type Catalog map[string]string

func loadCatalogs() (map[string]Catalog, error) {
	out := make(map[string]Catalog, len(languages))
	for _, l := range languages {
		b, err := locales.ReadFile(path.Join("locales", l.Code+".json"))
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", l.Code, err)
		}
		var c Catalog
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", l.Code, err)
		}
		out[l.Code] = c
	}
	return out, nil
}

// Translator tracks the current language and persists changes to prefs.
type Translator struct {
	mu       sync.RWMutex
	catalogs map[string]Catalog
	current  string
	prefs    store.Prefs
	logger   *slog.Logger
	onChange []func(lang string)
}

// New returns a Translator set to English. Call Load to restore the saved language.
func New(prefs store.Prefs, logger *slog.Logger) (*Translator, error) {
	cats, err := loadCatalogs()
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = store.NewMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		catalogs: cats,
		current:  DefaultLanguage,
		prefs:    prefs,
		logger:   logger.With("component", "i18n"),
	}, nil
}

// Load restores the saved language; unknown or missing values keep the current one.
func (t *Translator) Load(ctx context.Context) error {
	v, err := t.prefs.Get(ctx, store.KeyLanguage)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load language: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.catalogs[v]; ok {
		t.current = v
	}
	return nil
}

// Current returns the active language code.
func (t *Translator) Current() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Switch changes the language and saves it. Unknown languages change nothing.
func (t *Translator) Switch(ctx context.Context, lang string) error {
	t.mu.Lock()
	if _, ok := t.catalogs[lang]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	t.current = lang
	hooks := append([]func(string){}, t.onChange...)
	t.mu.Unlock()

	if err := t.prefs.Set(ctx, store.KeyLanguage, lang); err != nil {
		return fmt.Errorf("save language: %w", err)
	}
	t.logger.Info("language changed", "language", lang, "voice", Voice(lang))
	for _, fn := range hooks {
		fn(lang)
	}
	return nil
}

// OnChange registers fn to run after every successful Switch.
func (t *Translator) OnChange(fn func(lang string)) {
	t.mu.Lock()
	t.onChange = append(t.onChange, fn)
	t.mu.Unlock()
}

// Lookup resolves key in the current language, then English, then returns key.
func (t *Translator) Lookup(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v := t.catalogs[t.current][key]; v != "" {
		return v
	}
	if v := t.catalogs[DefaultLanguage][key]; v != "" {
		return v
	}
	return key
}

// Catalog returns a copy of the catalog for lang.
func (t *Translator) Catalog(lang string) (Catalog, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.catalogs[lang]
	if !ok {
		return nil, false
	}
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out, true
}
