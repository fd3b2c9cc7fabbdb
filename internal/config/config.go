// Package config loads service settings from flags, environment (MEAL_*),
// an optional YAML file and built-in defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mcp-meal-analyzer/internal/healthscore"
)

// EnvPrefix prefixes every environment variable: server.port -> MEAL_SERVER_PORT.
const EnvPrefix = "MEAL"

// Recognizer providers.
const (
	ProviderGateway     = "gateway"
	ProviderRekognition = "rekognition"
	ProviderNone        = "none"
)

// Known nutrition source ids.
var knownSources = []string{"edamam", "usda"}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	DB         DBConfig         `mapstructure:"db"`
	Log        LogConfig        `mapstructure:"log"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Recognizer RecognizerConfig `mapstructure:"recognizer"`
	AWS        AWSConfig        `mapstructure:"aws"`
	Score      ScoreConfig      `mapstructure:"score"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Tables     TablesConfig     `mapstructure:"tables"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	CORSOrigins     []string      `mapstructure:"cors-origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type DBConfig struct {
	// Path of the SQLite file. Empty disables persistence and the shared cache.
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ResolverConfig struct {
	MinScore   float64       `mapstructure:"min-score"`
	MaxResults int           `mapstructure:"max-results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SourcesConfig struct {
	Order  []string     `mapstructure:"order"`
	Edamam EdamamConfig `mapstructure:"edamam"`
	USDA   USDAConfig   `mapstructure:"usda"`
}

type EdamamConfig struct {
	AppID   string `mapstructure:"app-id"`
	AppKey  string `mapstructure:"app-key"`
	BaseURL string `mapstructure:"base-url"`
}

// Enabled reports whether credentials are present.
func (e EdamamConfig) Enabled() bool { return e.AppID != "" && e.AppKey != "" }

type USDAConfig struct {
	APIKey  string `mapstructure:"api-key"`
	BaseURL string `mapstructure:"base-url"`
}

func (u USDAConfig) Enabled() bool { return u.APIKey != "" }

type RecognizerConfig struct {
	Provider string        `mapstructure:"provider"`
	ProxyURL string        `mapstructure:"proxy-url"`
	APIKey   string        `mapstructure:"api-key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

type ScoreConfig struct {
	Weights healthscore.Weights `mapstructure:"weights"`
}

type CacheConfig struct {
	TTL CacheTTLConfig `mapstructure:"ttl"`
}

type CacheTTLConfig struct {
	Analysis    time.Duration `mapstructure:"analysis"`
	Vision      time.Duration `mapstructure:"vision"`
	Translation time.Duration `mapstructure:"translation"`
	Nutrition   time.Duration `mapstructure:"nutrition"`
}

type TablesConfig struct {
	// Path to a YAML file replacing the embedded tables.
	Path string `mapstructure:"path"`
}

type PipelineConfig struct {
	MinFallbackConfidence float64 `mapstructure:"min-fallback-confidence"`
	Region                string  `mapstructure:"region"`
	Concurrency           int     `mapstructure:"concurrency"`
}

// SetDefaults registers every key with its default so environment variables
// are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	w := healthscore.DefaultWeights()
	defaults := map[string]any{
		"server.host":             "0.0.0.0",
		"server.port":             8011,
		"server.shutdown-timeout": 10 * time.Second,
		"server.cors-origins":     []string{"*"},

		"db.path": "/data/meal-analyzer.db",

		"log.level":  "info",
		"log.format": "console",

		"resolver.min-score":   0.7,
		"resolver.max-results": 5,
		"resolver.timeout":     8 * time.Second,

		"sources.order":           knownSources,
		"sources.edamam.app-id":   "",
		"sources.edamam.app-key":  "",
		"sources.edamam.base-url": "",
		"sources.usda.api-key":    "",
		"sources.usda.base-url":   "",

		"recognizer.provider":  ProviderGateway,
		"recognizer.proxy-url": "http://mcp-compose-http-proxy:9876",
		"recognizer.api-key":   "",
		"recognizer.model":     "anthropic/claude-3.5-sonnet",
		"recognizer.timeout":   60 * time.Second,

		"aws.region": "",

		"score.weights.protein":        w.Protein,
		"score.weights.fiber":          w.Fiber,
		"score.weights.saturated-fat":  w.SaturatedFat,
		"score.weights.sugars":         w.Sugars,
		"score.weights.energy-density": w.EnergyDensity,

		"cache.ttl.analysis":    24 * time.Hour,
		"cache.ttl.vision":      7 * 24 * time.Hour,
		"cache.ttl.translation": 30 * 24 * time.Hour,
		"cache.ttl.nutrition":   7 * 24 * time.Hour,

		"tables.path": "",

		"pipeline.min-fallback-confidence": 0.7,
		"pipeline.region":                  "",
		"pipeline.concurrency":             8,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load configures env lookup on v, applies defaults and returns the validated
// configuration. Config files and flags must be bound by the caller.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Recognizer.Provider = strings.ToLower(strings.TrimSpace(c.Recognizer.Provider))
	for i, s := range c.Sources.Order {
		c.Sources.Order[i] = strings.ToLower(strings.TrimSpace(s))
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Resolver.MinScore <= 0 || c.Resolver.MinScore > 1 {
		errs = append(errs, fmt.Errorf("resolver.min-score must be in (0,1], got %v", c.Resolver.MinScore))
	}
	if c.Resolver.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("resolver.max-results must be positive"))
	}
	if c.Resolver.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("resolver.timeout must be positive"))
	}
	for _, s := range c.Sources.Order {
		if !slices.Contains(knownSources, s) {
			errs = append(errs, fmt.Errorf("sources.order: unknown source %q (expected one of %s)", s, strings.Join(knownSources, ", ")))
		}
	}
	switch c.Recognizer.Provider {
	case ProviderGateway, ProviderRekognition, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("recognizer.provider %q (expected gateway|rekognition|none)", c.Recognizer.Provider))
	}
	if err := c.Score.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("score.weights: %w", err))
	}
	ttl := c.Cache.TTL
	if ttl.Analysis < 0 || ttl.Vision < 0 || ttl.Translation < 0 || ttl.Nutrition < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl values must not be negative"))
	}
	if mc := c.Pipeline.MinFallbackConfidence; mc < 0 || mc > 1 {
		errs = append(errs, fmt.Errorf("pipeline.min-fallback-confidence must be in [0,1], got %v", mc))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
