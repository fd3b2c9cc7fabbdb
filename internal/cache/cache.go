// Package cache provides the best-effort key/value cache used for analyses,
// recognizer output, translations and nutrition lookups.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Namespaces used across the service.
const (
	NamespaceAnalysis    = "analysis"
	NamespaceVision      = "vision"
	NamespaceTranslation = "translation"
	NamespaceNutrition   = "nutrition"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented cache with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key builds a namespaced key. The parts are lowercased, trimmed and hashed so
// keys stay short regardless of input length.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// GetJSON decodes a cached value into out. Any failure, including a corrupt
// entry, is reported as a miss and logged; callers recompute.
func GetJSON(ctx context.Context, s Store, log zerolog.Logger, key string, out any) bool {
	if s == nil {
		return false
	}
	raw, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding corrupt cache entry")
		return false
	}
	return true
}

// SetJSON stores v under key. Failures are logged and otherwise ignored.
func SetJSON(ctx context.Context, s Store, log zerolog.Logger, key string, v any, ttl time.Duration) {
	if s == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := s.Set(ctx, key, raw, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
