// Package pipeline wires the analysis stages into the outward entry points:
// AnalyzeComponents, ReanalyzeWithManualEdits and AnalyzeInput.
//
// Components are processed concurrently; each one is classified, resolved (or
// estimated), validated and augmented independently. Aggregation, scoring and
// sanity checks run once all components have finished.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mcp-meal-analyzer/internal/analysis"
	"mcp-meal-analyzer/internal/apperr"
	"mcp-meal-analyzer/internal/cache"
	"mcp-meal-analyzer/internal/healthscore"
	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/recognizer"
	"mcp-meal-analyzer/internal/resolver"
	"mcp-meal-analyzer/internal/tables"
)

// Resolver finds a canonical food for a name. It returns resolver.ErrNoMatch
// when nothing qualifies.
type Resolver interface {
	Resolve(ctx context.Context, query string, lc models.LookupContext) (*models.CanonicalFood, error)
}

// Localizer translates display names; every input name must be a key of the
// result.
type Localizer interface {
	LocalizeAll(ctx context.Context, names []string, locale string) map[string]string
}

// Options tunes the pipeline.
type Options struct {
	MinFallbackConfidence float64
	AnalysisTTL           time.Duration
	Region                string
	Concurrency           int
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		MinFallbackConfidence: analysis.DefaultMinFallbackConfidence,
		AnalysisTTL:           24 * time.Hour,
		Concurrency:           8,
	}
}

// Deps are the collaborators of a Pipeline. Resolver, Recognizer, Localizer
// and Cache are optional.
type Deps struct {
	Tables     *tables.Tables
	Resolver   Resolver
	Recognizer recognizer.Recognizer
	Localizer  Localizer
	Scorer     *healthscore.Calculator
	Cache      cache.Store
	Log        zerolog.Logger
}

type Pipeline struct {
	tables     *tables.Tables
	resolver   Resolver
	recognizer recognizer.Recognizer
	localizer  Localizer
	validator  *analysis.Validator
	scorer     *healthscore.Calculator
	cache      cache.Store
	log        zerolog.Logger
	opts       Options
	newID      func() string
}

// New builds a pipeline. Missing tables and scorer fall back to the defaults.
func New(d Deps, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.MinFallbackConfidence <= 0 {
		opts.MinFallbackConfidence = def.MinFallbackConfidence
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	t := d.Tables
	if t == nil {
		t = tables.Default()
	}
	scorer := d.Scorer
	if scorer == nil {
		scorer, _ = healthscore.NewCalculator(healthscore.DefaultWeights())
	}
	return &Pipeline{
		tables:     t,
		resolver:   d.Resolver,
		recognizer: d.Recognizer,
		localizer:  d.Localizer,
		validator:  analysis.NewValidator(t, d.Log),
		scorer:     scorer,
		cache:      d.Cache,
		log:        d.Log,
		opts:       opts,
		newID:      uuid.NewString,
	}
}

// AnalyzeInput runs the recognizer on text or an image and analyzes the
// components it returns. Recognizer failures are returned as-is
// (apperr.RecognitionError or apperr.UserError).
func (p *Pipeline) AnalyzeInput(ctx context.Context, in recognizer.Input, locale, mode string) (*models.AnalysisResult, []models.DetectedComponent, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	if p.recognizer == nil {
		return nil, nil, apperr.Recognition(errors.New("no recognizer configured"))
	}
	comps, err := p.recognizer.Extract(ctx, in, locale, mode)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.AnalyzeComponents(ctx, comps, locale)
	if err != nil {
		return nil, nil, err
	}
	return res, comps, nil
}

// AnalyzeComponents resolves, validates and scores detected components. It
// only fails when ctx is done.
func (p *Pipeline) AnalyzeComponents(ctx context.Context, components []models.DetectedComponent, locale string) (*models.AnalysisResult, error) {
	deduped := analysis.Dedupe(p.tables, components)
	if len(deduped) < len(components) {
		p.log.Debug().Int("components", len(components)).Int("unique", len(deduped)).Msg("merged duplicate components")
	}

	key := ""
	if raw, err := json.Marshal(deduped); err == nil {
		key = cache.Key(cache.NamespaceAnalysis, string(raw), locale, p.opts.Region)
		var cached models.AnalysisResult
		if cache.GetJSON(ctx, p.cache, p.log, key, &cached) {
			p.log.Debug().Str("key", key).Msg("analysis cache hit")
			return &cached, nil
		}
	}

	res, err := p.run(ctx, deduped, locale, false)
	if err != nil {
		return nil, err
	}
	if key != "" {
		cache.SetJSON(ctx, p.cache, p.log, key, res, p.opts.AnalysisTTL)
	}
	return res, nil
}

// ReanalyzeWithManualEdits re-runs resolution, validation and scoring on
// user-corrected names and portions. The recognizer is not called and the
// user's portions are not clamped.
func (p *Pipeline) ReanalyzeWithManualEdits(ctx context.Context, edits []models.ManualEdit, locale string) (*models.AnalysisResult, error) {
	comps := make([]models.DetectedComponent, 0, len(edits))
	for i, e := range edits {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, apperr.Userf("item %d: name is required", i+1)
		}
		if e.PortionGrams < 0 || math.IsNaN(e.PortionGrams) || math.IsInf(e.PortionGrams, 0) {
			return nil, apperr.Userf("item %d (%s): portion must be a non-negative number of grams", i+1, name)
		}
		one := 1.0
		c := models.DetectedComponent{Name: name, Confidence: &one}
		if e.PortionGrams > 0 {
			c.Portion = &models.Portion{Value: e.PortionGrams, Unit: "g"}
		}
		comps = append(comps, c)
	}
	return p.run(ctx, comps, locale, true)
}

func (p *Pipeline) run(ctx context.Context, comps []models.DetectedComponent, locale string, manual bool) (*models.AnalysisResult, error) {
	results := make([]*models.AnalyzedItem, len(comps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, c := range comps {
		g.Go(func() error {
			item, err := p.analyzeComponent(gctx, c, locale, manual)
			if err != nil {
				return err
			}
			results[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]models.AnalyzedItem, 0, len(results))
	for _, it := range results {
		if it == nil {
			continue
		}
		it.ID = p.newID()
		items = append(items, *it)
	}
	p.localizeNames(ctx, items, locale)

	totals := analysis.Aggregate(items)
	issues := analysis.CheckSanity(items, totals)
	suspicious, needsReview := analysis.Flags(items, issues)
	if issues == nil {
		issues = []models.SanityIssue{}
	}

	return &models.AnalysisResult{
		Items:        items,
		Totals:       totals,
		HealthScore:  p.scorer.Score(healthscore.MealFromItems(items, totals), locale),
		SanityIssues: issues,
		IsSuspicious: suspicious,
		NeedsReview:  needsReview,
		Locale:       locale,
	}, nil
}

// analyzeComponent returns nil for a dropped component. Only context errors
// are returned.
func (p *Pipeline) analyzeComponent(ctx context.Context, c models.DetectedComponent, locale string, manual bool) (*models.AnalyzedItem, error) {
	c.Name = strings.TrimSpace(c.Name)
	log := p.log.With().Str("component", c.Name).Logger()
	if c.Name == "" {
		log.Info().Msg("component dropped: empty name")
		return nil, nil
	}

	if bev := analysis.ClassifyBeverage(p.tables, c.Name, c.Category); bev != nil {
		est := p.portion(c, bev.DefaultVolumeML, manual, log)
		item, _ := p.validator.Validate(analysis.BeverageItem(c, bev, est))
		return p.finish(item, manual), nil
	}

	if p.tables.IsGeneric(c.Name) {
		log.Info().Str("reason", string(analysis.DropGenericName)).Msg("component dropped")
		return nil, nil
	}

	est := p.portion(c, 0, manual, log)
	food, err := p.resolve(ctx, c, locale, log)
	if err != nil {
		return nil, err
	}

	var item models.AnalyzedItem
	if food != nil {
		if est.Origin == analysis.PortionDefault && food.DefaultPortion > 0 {
			est = p.portion(c, food.DefaultPortion, manual, log)
		}
		item = analysis.SourceItem(c, food, est)
		log.Debug().Str("source", food.SourceID).Str("match", food.DisplayName).Float64("score", food.MatchConfidence).Msg("component resolved")
	} else {
		var reason analysis.DropReason
		item, reason = analysis.BuildFallback(p.tables, c, est, p.opts.MinFallbackConfidence)
		if reason != analysis.DropNone {
			log.Info().Str("reason", string(reason)).Float64("confidence", c.ConfidenceOr(1)).Msg("component dropped")
			return nil, nil
		}
		log.Info().Str("tier", string(item.Fallback.Tier)).Bool("clamped", item.Fallback.Clamped).Msg("fallback estimate used")
	}

	item, issues := p.validator.Validate(item)
	if len(issues) > 0 {
		log.Debug().Int("issues", len(issues)).Msg("item corrected by validation")
	}
	item = analysis.Augment(p.tables, item)
	return p.finish(item, manual), nil
}

func (p *Pipeline) finish(item models.AnalyzedItem, manual bool) *models.AnalyzedItem {
	if manual {
		item.Provenance = models.ProvenanceManual
	}
	return &item
}

// portion estimates the portion; manual portions are taken as given.
func (p *Pipeline) portion(c models.DetectedComponent, fallback float64, manual bool, log zerolog.Logger) analysis.PortionEstimate {
	est := analysis.EstimatePortion(p.tables, c, fallback)
	if manual && est.Origin == analysis.PortionExplicit {
		est.Grams, est.Clamped = est.Original, false
		return est
	}
	if est.Clamped {
		log.Info().
			Float64("original", est.Original).
			Float64("final", est.Grams).
			Str("band", est.Category).
			Msg("portion clamped")
	}
	return est
}

// resolve returns nil when nothing matched or no resolver is configured.
func (p *Pipeline) resolve(ctx context.Context, c models.DetectedComponent, locale string, log zerolog.Logger) (*models.CanonicalFood, error) {
	if p.resolver == nil {
		return nil, nil
	}
	lc := models.LookupContext{Locale: locale, Region: p.opts.Region, Category: p.lookupCategory(c)}
	food, err := p.resolver.Resolve(ctx, c.Name, lc)
	switch {
	case err == nil:
		return food, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case !errors.Is(err, resolver.ErrNoMatch):
		log.Warn().Err(err).Msg("nutrition lookup failed")
	}
	return nil, nil
}

func (p *Pipeline) lookupCategory(c models.DetectedComponent) string {
	switch {
	case c.IsDrinkHint():
		return models.CategoryDrink
	case strings.EqualFold(c.Category, models.CategorySolid):
		return models.CategorySolid
	case p.tables.IsBeverage(c.Name):
		return models.CategoryDrink
	}
	return models.CategoryUnknown
}

func (p *Pipeline) localizeNames(ctx context.Context, items []models.AnalyzedItem, locale string) {
	if p.localizer == nil || len(items) == 0 {
		return
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.BaseName)
	}
	localized := p.localizer.LocalizeAll(ctx, names, locale)
	for i := range items {
		if name := localized[items[i].BaseName]; name != "" {
			items[i].DisplayName = name
		}
	}
}
