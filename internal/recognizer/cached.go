package recognizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"mcp-meal-analyzer/internal/cache"
	"mcp-meal-analyzer/internal/models"
)

// Cached memoizes a Recognizer by input content, locale and mode. Only
// non-empty successful results are stored.
type Cached struct {
	next  Recognizer
	store cache.Store
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCached(next Recognizer, store cache.Store, ttl time.Duration, log zerolog.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, log: log}
}

func (c *Cached) Extract(ctx context.Context, in Input, locale, mode string) ([]models.DetectedComponent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	key := cache.Key(cache.NamespaceVision, inputDigest(in), locale, NormalizeMode(mode))

	var comps []models.DetectedComponent
	if cache.GetJSON(ctx, c.store, c.log, key, &comps) {
		c.log.Debug().Str("key", key).Msg("recognizer cache hit")
		return comps, nil
	}
	comps, err := c.next.Extract(ctx, in, locale, mode)
	if err != nil {
		return nil, err
	}
	if len(comps) > 0 {
		cache.SetJSON(ctx, c.store, c.log, key, comps, c.ttl)
	}
	return comps, nil
}

func inputDigest(in Input) string {
	if in.IsImage() {
		sum := sha256.Sum256(in.Image)
		return "image:" + hex.EncodeToString(sum[:])
	}
	return "text:" + in.Text
}
