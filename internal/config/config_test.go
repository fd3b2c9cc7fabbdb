package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8011", cfg.Server.Addr())
	assert.Equal(t, "/data/meal-analyzer.db", cfg.DB.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 0.7, cfg.Resolver.MinScore)
	assert.Equal(t, 8*time.Second, cfg.Resolver.Timeout)
	assert.Equal(t, []string{"edamam", "usda"}, cfg.Sources.Order)
	assert.False(t, cfg.Sources.Edamam.Enabled())
	assert.False(t, cfg.Sources.USDA.Enabled())
	assert.Equal(t, ProviderGateway, cfg.Recognizer.Provider)
	assert.Equal(t, 0.25, cfg.Score.Weights.Protein)
	assert.Equal(t, 0.2, cfg.Score.Weights.EnergyDensity)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL.Analysis)
	assert.Equal(t, 0.7, cfg.Pipeline.MinFallbackConfidence)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("MEAL_SERVER_PORT", "9090")
	t.Setenv("MEAL_SOURCES_USDA_API_KEY", "usda-key")
	t.Setenv("MEAL_RESOLVER_MIN_SCORE", "0.5")
	t.Setenv("MEAL_RECOGNIZER_PROVIDER", "Rekognition")
	t.Setenv("MEAL_CACHE_TTL_VISION", "1h")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Sources.USDA.Enabled())
	assert.Equal(t, 0.5, cfg.Resolver.MinScore)
	assert.Equal(t, ProviderRekognition, cfg.Recognizer.Provider)
	assert.Equal(t, time.Hour, cfg.Cache.TTL.Vision)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  port: 7000
sources:
  order: [usda]
  edamam:
    app-id: id
    app-key: key
score:
  weights:
    protein: 1
    fiber: 0
    saturated-fat: 0
    sugars: 0
    energy-density: 0
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"usda"}, cfg.Sources.Order)
	assert.True(t, cfg.Sources.Edamam.Enabled())
	assert.Equal(t, 1.0, cfg.Score.Weights.Protein)
	assert.Zero(t, cfg.Score.Weights.Fiber)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		want string
	}{
		{"port", "server.port", 70000, "server.port"},
		{"min score", "resolver.min-score", 0, "resolver.min-score"},
		{"source", "sources.order", []string{"usda", "openfoodfacts"}, "openfoodfacts"},
		{"provider", "recognizer.provider", "tesseract", "recognizer.provider"},
		{"weights", "score.weights.sugars", -1, "score.weights"},
		{"ttl", "cache.ttl.analysis", -time.Minute, "cache.ttl"},
		{"fallback confidence", "pipeline.min-fallback-confidence", 1.5, "min-fallback-confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			require.Error(t, err)
			assert.ErrorContains(t, err, "invalid config")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Recognizer.Provider = "?"
	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "server.port")
	assert.ErrorContains(t, err, "recognizer.provider")
}
