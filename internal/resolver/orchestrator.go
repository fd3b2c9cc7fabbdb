package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mcp-meal-analyzer/internal/cache"
	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// Options tunes the orchestrator.
type Options struct {
	MinScore      float64
	MaxResults    int
	SourceTimeout time.Duration
	CacheTTL      time.Duration
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		MinScore:      0.7,
		MaxResults:    5,
		SourceTimeout: 8 * time.Second,
		CacheTTL:      7 * 24 * time.Hour,
	}
}

// Orchestrator queries every configured source concurrently and picks the
// best surviving candidate. Sources are listed in priority order, which breaks
// score ties.
type Orchestrator struct {
	sources []Source
	tables  *tables.Tables
	cache   cache.Store
	log     zerolog.Logger
	opts    Options
}

// NewOrchestrator wires an orchestrator. store may be nil to disable caching.
func NewOrchestrator(t *tables.Tables, sources []Source, store cache.Store, log zerolog.Logger, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.MinScore <= 0 {
		opts.MinScore = def.MinScore
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = def.MaxResults
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = def.SourceTimeout
	}
	return &Orchestrator{sources: sources, tables: t, cache: store, log: log, opts: opts}
}

type ranked struct {
	Candidate
	source   Source
	priority int
}

// Resolve returns the canonical food for query or ErrNoMatch. Failing sources
// are logged and skipped; only context cancellation is returned as an error.
func (o *Orchestrator) Resolve(ctx context.Context, query string, lc models.LookupContext) (*models.CanonicalFood, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(o.sources) == 0 {
		return nil, ErrNoMatch
	}

	key := cache.Key(cache.NamespaceNutrition, tables.Normalize(query), lc.Locale, lc.Region, lc.Category)
	var cached models.CanonicalFood
	if cache.GetJSON(ctx, o.cache, o.log, key, &cached) {
		return &cached, nil
	}

	candidates := o.search(ctx, query, lc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, c := range candidates {
		fctx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
		per100, err := c.source.FetchNormalized(fctx, c.ID)
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			o.sourceFailure(err, c.source.ID()).Str("id", c.ID).Msg("fetching nutrients failed, trying next candidate")
			continue
		}
		food := &models.CanonicalFood{
			SourceID:        c.source.ID(),
			SourceFoodID:    c.ID,
			DisplayName:     c.Description,
			Category:        c.Category,
			DefaultPortion:  c.DefaultPortion,
			Per100:          per100,
			MatchConfidence: c.Score,
			Suspicious:      Implausible(per100),
		}
		cache.SetJSON(ctx, o.cache, o.log, key, food, o.opts.CacheTTL)
		return food, nil
	}
	return nil, ErrNoMatch
}

// sourceFailure picks the log level for a failed source call. Rejected
// credentials are a configuration problem and log at error level; throttling
// and missing records are transient.
func (o *Orchestrator) sourceFailure(err error, source string) *zerolog.Event {
	var ev *zerolog.Event
	switch {
	case IsUnauthorized(err):
		ev = o.log.Error().Str("reason", "credentials rejected")
	case IsRateLimited(err):
		ev = o.log.Warn().Str("reason", "rate limited")
	case IsNotFound(err):
		ev = o.log.Warn().Str("reason", "not found")
	default:
		ev = o.log.Warn()
	}
	return ev.Err(err).Str("source", source)
}

func (o *Orchestrator) search(ctx context.Context, query string, lc models.LookupContext) []ranked {
	results := make([][]Candidate, len(o.sources))
	opts := SearchOptions{MaxResults: o.opts.MaxResults, MinScore: o.opts.MinScore, CategoryHint: lc.Category}

	// Plain group: a failing source must not cancel the others.
	var g errgroup.Group
	for i, src := range o.sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
			defer cancel()
			cands, err := src.Search(sctx, query, opts)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					o.sourceFailure(err, src.ID()).Str("query", query).Msg("nutrition source unavailable")
				}
				return nil
			}
			results[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	beverage := lc.Category == models.CategoryDrink || o.tables.IsBeverage(query)
	var out []ranked
	for i, cands := range results {
		for _, c := range cands {
			if c.Score < o.opts.MinScore {
				continue
			}
			if !Overlaps(o.tables, query, c.Description, beverage) {
				o.log.Debug().Str("source", o.sources[i].ID()).Str("query", query).Str("candidate", c.Description).Msg("candidate rejected for lexical overlap")
				continue
			}
			out = append(out, ranked{Candidate: c, source: o.sources[i], priority: i})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].priority < out[b].priority
	})
	return out
}
