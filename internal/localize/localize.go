// Package localize translates English food names into the user's language.
// Translation is best-effort: any failure yields the English name.
package localize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"mcp-meal-analyzer/internal/cache"
	"mcp-meal-analyzer/internal/gateway"
)

// Translator translates a batch of English names. Missing keys in the result
// mean "no translation".
type Translator interface {
	Translate(ctx context.Context, names []string, locale string) (map[string]string, error)
}

// Service caches translations per name and locale.
type Service struct {
	tr    Translator
	store cache.Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewService returns a Service. tr may be nil, in which case names are returned
// unchanged.
func NewService(tr Translator, store cache.Store, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{tr: tr, store: store, ttl: ttl, log: log}
}

// IsEnglish reports whether locale needs no translation.
func IsEnglish(locale string) bool {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if err != nil {
		return true
	}
	base, _ := tag.Base()
	return base.String() == "en"
}

// Localize returns the localized name, or name itself.
func (s *Service) Localize(ctx context.Context, name, locale string) string {
	return s.LocalizeAll(ctx, []string{name}, locale)[name]
}

// LocalizeAll translates names in one batch. Every input name is a key of the
// result.
func (s *Service) LocalizeAll(ctx context.Context, names []string, locale string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = n
	}
	if s == nil || s.tr == nil || IsEnglish(locale) {
		return out
	}

	var misses []string
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		var cached string
		if cache.GetJSON(ctx, s.store, s.log, s.key(n, locale), &cached) {
			out[n] = cached
			continue
		}
		misses = append(misses, n)
	}
	if len(misses) == 0 {
		return out
	}

	translated, err := s.tr.Translate(ctx, misses, locale)
	if err != nil {
		s.log.Warn().Err(err).Str("locale", locale).Int("names", len(misses)).Msg("translation failed, using English names")
		return out
	}
	for _, n := range misses {
		t := strings.TrimSpace(translated[n])
		if t == "" {
			continue
		}
		out[n] = t
		cache.SetJSON(ctx, s.store, s.log, s.key(n, locale), t, s.ttl)
	}
	return out
}

func (s *Service) key(name, locale string) string {
	return cache.Key(cache.NamespaceTranslation, name, locale)
}

// Completer is the subset of gateway.Client used by GatewayTranslator.
type Completer interface {
	Complete(ctx context.Context, req gateway.CompletionRequest) (string, error)
}

// GatewayTranslator translates through the completion gateway.
type GatewayTranslator struct {
	gw Completer
}

func NewGatewayTranslator(gw Completer) *GatewayTranslator {
	return &GatewayTranslator{gw: gw}
}

const translatorSystemPrompt = `You translate food names for a nutrition app.

IMPORTANT: Always respond with valid JSON in this exact format:
{"translations": {"<english name>": "<translated name>"}}

Keep translations short and natural; do not add portions or explanations.`

func (g *GatewayTranslator) Translate(ctx context.Context, names []string, locale string) (map[string]string, error) {
	list, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal names: %w", err)
	}
	out, err := g.gw.Complete(ctx, gateway.CompletionRequest{
		SystemPrompt: translatorSystemPrompt,
		Messages: []gateway.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Translate these food names into %s (%s): %s", languageName(locale), locale, list),
		}},
		MaxTokens:   500,
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}
	raw, ok := gateway.ExtractJSON(out)
	if !ok {
		return nil, fmt.Errorf("no JSON object in translation response")
	}
	var doc struct {
		Translations map[string]string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse translation JSON: %w", err)
	}
	return doc.Translations, nil
}

func languageName(locale string) string {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return locale
	}
	base, _ := tag.Base()
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return locale
}
