package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mcp-meal-analyzer/internal/cache"
	"mcp-meal-analyzer/internal/config"
	"mcp-meal-analyzer/internal/gateway"
	"mcp-meal-analyzer/internal/healthscore"
	"mcp-meal-analyzer/internal/localize"
	"mcp-meal-analyzer/internal/pipeline"
	"mcp-meal-analyzer/internal/recognizer"
	"mcp-meal-analyzer/internal/resolver"
	"mcp-meal-analyzer/internal/storage"
	"mcp-meal-analyzer/internal/tables"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	pipeline *pipeline.Pipeline
	store    *storage.SQLiteStorage // nil when db.path is empty
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// buildApp wires every component from cfg. The SQLite database doubles as the
// shared cache; without one an in-memory cache is used.
func buildApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	t, err := tables.Load(cfg.Tables.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}

	a := &app{}
	var store cache.Store = cache.NewMemory()
	if cfg.DB.Path != "" {
		st, err := storage.NewSQLiteStorage(cfg.DB.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.store, store = st, st
		if n, err := st.PurgeExpired(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to purge expired cache entries")
		} else if n > 0 {
			log.Info().Int64("entries", n).Msg("purged expired cache entries")
		}
	}

	sources := buildSources(cfg, t)
	if len(sources) == 0 {
		log.Warn().Msg("no nutrition source configured, items will use fallback estimates")
	}
	orch := resolver.NewOrchestrator(t, sources, store, log.With().Str("component", "resolver").Logger(), resolver.Options{
		MinScore:      cfg.Resolver.MinScore,
		MaxResults:    cfg.Resolver.MaxResults,
		SourceTimeout: cfg.Resolver.Timeout,
		CacheTTL:      cfg.Cache.TTL.Nutrition,
	})

	scorer, err := healthscore.NewCalculator(cfg.Score.Weights)
	if err != nil {
		a.Close()
		return nil, err
	}

	gw := gateway.New(gateway.Config{
		ProxyURL: cfg.Recognizer.ProxyURL,
		APIKey:   cfg.Recognizer.APIKey,
		Model:    cfg.Recognizer.Model,
		Timeout:  cfg.Recognizer.Timeout,
	})

	deps := pipeline.Deps{
		Tables:    t,
		Resolver:  orch,
		Localizer: localize.NewService(localize.NewGatewayTranslator(gw), store, cfg.Cache.TTL.Translation, log.With().Str("component", "localize").Logger()),
		Scorer:    scorer,
		Cache:     store,
		Log:       log.With().Str("component", "pipeline").Logger(),
	}

	recLog := log.With().Str("component", "recognizer").Logger()
	var rec recognizer.Recognizer
	switch cfg.Recognizer.Provider {
	case config.ProviderGateway:
		rec = recognizer.NewLLM(gw, recLog)
	case config.ProviderRekognition:
		rec, err = recognizer.NewRekognitionFromConfig(ctx, cfg.AWS.Region, t, recLog)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	if rec != nil {
		deps.Recognizer = recognizer.NewCached(rec, store, cfg.Cache.TTL.Vision, recLog)
	}

	a.pipeline = pipeline.New(deps, pipeline.Options{
		MinFallbackConfidence: cfg.Pipeline.MinFallbackConfidence,
		AnalysisTTL:           cfg.Cache.TTL.Analysis,
		Region:                cfg.Pipeline.Region,
		Concurrency:           cfg.Pipeline.Concurrency,
	})
	return a, nil
}

// buildSources returns the credentialed sources in the configured priority order.
func buildSources(cfg *config.Config, t *tables.Tables) []resolver.Source {
	var out []resolver.Source
	for _, id := range cfg.Sources.Order {
		switch id {
		case "edamam":
			if cfg.Sources.Edamam.Enabled() {
				out = append(out, resolver.NewEdamam(resolver.EdamamConfig{
					AppID:   cfg.Sources.Edamam.AppID,
					AppKey:  cfg.Sources.Edamam.AppKey,
					BaseURL: cfg.Sources.Edamam.BaseURL,
				}, t))
			}
		case "usda":
			if cfg.Sources.USDA.Enabled() {
				out = append(out, resolver.NewUSDA(resolver.USDAConfig{
					APIKey:  cfg.Sources.USDA.APIKey,
					BaseURL: cfg.Sources.USDA.BaseURL,
				}, t))
			}
		}
	}
	return out
}
