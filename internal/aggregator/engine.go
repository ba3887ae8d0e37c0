// Package aggregator runs one recommendation request end to end: provider
// fan-out, deduplication, profile building, ranking and filtering.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/whatnow/internal/cache"
	"github.com/onnwee/whatnow/internal/dedup"
	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/gateway"
	"github.com/onnwee/whatnow/internal/profile"
	"github.com/onnwee/whatnow/internal/provider"
	"github.com/onnwee/whatnow/internal/ranking"
	"github.com/onnwee/whatnow/internal/tracing"
)

// DefaultMaxHintCategories caps the categories sent to providers.
const DefaultMaxHintCategories = 3

// Cache lookup results reported to Metrics.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Engine construction errors.
var (
	ErrMissingFetcher  = errors.New("aggregator: fetcher is required")
	ErrMissingRanker   = errors.New("aggregator: ranker is required")
	ErrInvalidMaxHints = errors.New("aggregator: max hint categories must be positive")
)

// Fetcher queries every configured provider. *gateway.Gateway satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, loc event.Location, hints provider.QueryHints) gateway.Result
}

// Metrics receives pipeline observations. *metrics.Metrics satisfies it.
type Metrics interface {
	AddDuplicatesRemoved(n int)
	IncRanking(method string)
	IncRankingFallback()
	ObserveRecommendation(elapsed time.Duration)
	IncCache(result string)
}

type nopMetrics struct{}

func (nopMetrics) AddDuplicatesRemoved(int)            {}
func (nopMetrics) IncRanking(string)                   {}
func (nopMetrics) IncRankingFallback()                 {}
func (nopMetrics) ObserveRecommendation(time.Duration) {}
func (nopMetrics) IncCache(string)                     {}

// Config tunes the pipeline.
type Config struct {
	Filter ranking.FilterConfig
	// DefaultCategories are sent to providers when neither the request nor
	// the profile names a category.
	DefaultCategories []string
	MaxHintCategories int
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		Filter:            ranking.DefaultFilterConfig(),
		DefaultCategories: []string{"music", "arts", "food"},
		MaxHintCategories: DefaultMaxHintCategories,
	}
}

// Deps are the collaborators an Engine composes. Resolver, Extractor,
// Cache, Metrics and Logger are optional.
type Deps struct {
	Fetcher   Fetcher
	Resolver  *dedup.Resolver
	Extractor *profile.Extractor
	Ranker    ranking.Ranker
	Cache     cache.Cache
	Metrics   Metrics
	Logger    *slog.Logger
}

// Engine is stateless between requests and safe for concurrent use.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	resolver  *dedup.Resolver
	extractor *profile.Extractor
	taxonomy  *profile.Taxonomy
	ranker    ranking.Ranker
	cache     cache.Cache
	metrics   Metrics
	logger    *slog.Logger
}

// New creates an Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Fetcher == nil {
		return nil, ErrMissingFetcher
	}
	if deps.Ranker == nil {
		return nil, ErrMissingRanker
	}
	if err := cfg.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	if cfg.MaxHintCategories == 0 {
		cfg.MaxHintCategories = DefaultMaxHintCategories
	}
	if cfg.MaxHintCategories < 0 {
		return nil, ErrInvalidMaxHints
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Resolver == nil {
		deps.Resolver = dedup.NewResolver(dedup.DefaultTrust())
	}
	if deps.Extractor == nil {
		deps.Extractor = profile.NewExtractor(nil, deps.Logger)
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	return &Engine{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		resolver:  deps.Resolver,
		extractor: deps.Extractor,
		taxonomy:  deps.Extractor.Taxonomy(),
		ranker:    deps.Ranker,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}, nil
}

// Request is one recommendation query.
type Request struct {
	Location event.Location
	Activity string
	Name     string
	// Auxiliary maps a source name such as "bio" to free text from it.
	Auxiliary map[string]string
	// Profile is a previously built profile to merge into. It is not modified.
	Profile *profile.Profile
}

// Diagnostics describes how a result was produced.
type Diagnostics struct {
	ranking.Diagnostics
	RawCount        int  `json:"raw_count"`
	DedupedCount    int  `json:"deduped_count"`
	ProvidersFailed int  `json:"providers_failed"`
	Cached          bool `json:"cached"`
}

// Result is the ranked, filtered output of Recommend.
type Result struct {
	Events      []event.CanonicalEvent `json:"events"`
	Diagnostics Diagnostics            `json:"diagnostics"`
	Profile     *profile.Profile       `json:"profile,omitempty"`
}

// Recommend runs the pipeline for req. The only error it returns for a
// well-formed context is event.ErrInvalidLocation; provider and ranking
// failures degrade the result instead. No events is an empty result.
func (e *Engine) Recommend(ctx context.Context, req Request) (res Result, err error) {
	if err := req.Location.Validate(); err != nil {
		return Result{}, err
	}

	ctx, end := tracing.StartSpan(ctx, "recommend")
	defer func() { end(err) }()
	start := time.Now()
	defer func() { e.metrics.ObserveRecommendation(time.Since(start)) }()

	key, cacheable := e.cacheKey(req)
	if cacheable {
		if entry, ok := e.cache.Get(ctx, key); ok {
			e.metrics.IncCache(CacheHit)
			tracing.AddEvent(ctx, "cache.hit")
			return Result{
				Events: entry.Events,
				Diagnostics: Diagnostics{
					Diagnostics:     entry.Diagnostics,
					RawCount:        entry.RawCount,
					DedupedCount:    entry.DedupedCount,
					ProvidersFailed: entry.ProvidersFailed,
					Cached:          true,
				},
				Profile: entry.Profile,
			}, nil
		}
		e.metrics.IncCache(CacheMiss)
	}

	hints := e.queryHints(req)

	profileCh := make(chan profile.Profile, 1)
	go func() {
		_, endProfile := tracing.StartStageSpan(ctx, tracing.StageProfile)
		p := e.extractor.Build(profile.Input{
			Name:      req.Name,
			City:      req.Location.City,
			Activity:  req.Activity,
			Auxiliary: req.Auxiliary,
			Existing:  req.Profile,
		})
		endProfile(nil)
		profileCh <- p
	}()

	fanCtx, endFanOut := tracing.StartStageSpan(ctx, tracing.StageFanOut)
	fetched := e.fetcher.FetchAll(fanCtx, req.Location, hints)
	tracing.SetAttributes(fanCtx,
		attribute.Int("events.raw", len(fetched.Events)),
		attribute.Int("providers.failed", len(fetched.Failures)),
	)
	endFanOut(nil)

	built := <-profileCh

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	diag := Diagnostics{
		RawCount:        len(fetched.Events),
		ProvidersFailed: len(fetched.Failures),
	}

	_, endDedup := tracing.StartStageSpan(ctx, tracing.StageDedup)
	resolved := e.resolver.Resolve(fetched.Events)
	endDedup(nil)
	diag.DedupedCount = len(resolved)
	e.metrics.AddDuplicatesRemoved(len(fetched.Events) - len(resolved))

	if len(resolved) == 0 {
		e.logger.InfoContext(ctx, "no events found",
			"city", req.Location.City,
			"providers_failed", len(fetched.Failures),
		)
		return Result{Events: []event.CanonicalEvent{}, Diagnostics: diag, Profile: &built}, nil
	}

	candidates := make([]event.CanonicalEvent, len(resolved))
	for i, ev := range resolved {
		candidates[i] = event.NewCanonical(ev)
	}

	rankCtx, endRank := tracing.StartStageSpan(ctx, tracing.StageRank)
	ranked, rankDiag := e.ranker.Rank(rankCtx, candidates, ranking.Request{
		Activity: req.Activity,
		Profile:  &built,
	})
	tracing.SetAttributes(rankCtx, attribute.String("ranking.method", rankDiag.Method))
	endRank(nil)
	e.metrics.IncRanking(rankDiag.Method)
	if rankDiag.FallbackReason != "" {
		e.metrics.IncRankingFallback()
	}
	diag.Diagnostics = rankDiag

	_, endFilter := tracing.StartStageSpan(ctx, tracing.StageFilter)
	kept := ranking.Filter(ranked, e.cfg.Filter)
	endFilter(nil)

	e.logger.InfoContext(ctx, "recommendation complete",
		"raw", diag.RawCount,
		"deduped", diag.DedupedCount,
		"returned", len(kept),
		"method", rankDiag.Method,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if cacheable && len(kept) > 0 {
		e.cache.Set(ctx, key, &cache.Entry{
			Events:          kept,
			Diagnostics:     rankDiag,
			RawCount:        diag.RawCount,
			DedupedCount:    diag.DedupedCount,
			ProvidersFailed: diag.ProvidersFailed,
			Profile:         &built,
			StoredAt:        time.Now().UTC(),
		})
	}

	return Result{Events: kept, Diagnostics: diag, Profile: &built}, nil
}

// cacheKey reports false when no cache is configured or the request's
// personal inputs cannot be encoded.
func (e *Engine) cacheKey(req Request) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	variant, err := json.Marshal(struct {
		Name      string            `json:"name,omitempty"`
		Auxiliary map[string]string `json:"auxiliary,omitempty"`
		Profile   *profile.Profile  `json:"profile,omitempty"`
	}{req.Name, req.Auxiliary, req.Profile})
	if err != nil {
		e.logger.Warn("cache key encoding failed", "error", err)
		return "", false
	}
	return cache.Key(req.Location, req.Activity, string(variant)), true
}
