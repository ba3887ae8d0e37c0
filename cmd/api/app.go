package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/whatnow/internal/aggregator"
	"github.com/onnwee/whatnow/internal/api"
	"github.com/onnwee/whatnow/internal/cache"
	"github.com/onnwee/whatnow/internal/config"
	"github.com/onnwee/whatnow/internal/dedup"
	"github.com/onnwee/whatnow/internal/gateway"
	"github.com/onnwee/whatnow/internal/health"
	"github.com/onnwee/whatnow/internal/llm"
	"github.com/onnwee/whatnow/internal/metrics"
	"github.com/onnwee/whatnow/internal/middleware"
	"github.com/onnwee/whatnow/internal/profile"
	"github.com/onnwee/whatnow/internal/provider"
	"github.com/onnwee/whatnow/internal/ranking"
	"github.com/onnwee/whatnow/internal/ratelimit"
)

const (
	serviceName     = "whatnow-api"
	janitorInterval = 5 * time.Minute
)

// app holds the wired service and everything that needs closing.
type app struct {
	handler   http.Handler
	redis     *redis.Client
	quotas    *ratelimit.MemoryStore
	apiLimits *ratelimit.MemoryStore
	cache     *cache.MemoryCache
	maxWindow time.Duration
	logger    *slog.Logger
}

// newApp wires the recommendation engine and HTTP routes from cfg and
// registers all collectors with reg.
func newApp(cfg *config.Config, reg *prometheus.Registry, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger, maxWindow: max(cfg.ProviderQuotaWindow, cfg.APIRateWindow)}

	engineMetrics := metrics.NewMetrics()
	if err := engineMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register engine metrics: %w", err)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		quotas    ratelimit.Store
		apiLimits ratelimit.Store
		results   cache.Cache
		checkers  []api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		quotas = ratelimit.NewRedisStore(a.redis, "whatnow:quota:", logger)
		apiLimits = ratelimit.NewRedisStore(a.redis, "whatnow:api:", logger)
		results = cache.NewRedisCache(a.redis, cfg.CacheTTL, "", logger)
		checkers = append(checkers, health.NewRedisChecker(a.redis))
	} else {
		a.quotas = ratelimit.NewMemoryStore()
		a.apiLimits = ratelimit.NewMemoryStore()
		a.cache = cache.NewMemoryCache(cfg.CacheTTL)
		quotas, apiLimits, results = a.quotas, a.apiLimits, a.cache
	}

	providers, err := buildProviders(cfg, quotas, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	gwCfg := gateway.DefaultConfig()
	gwCfg.ProviderTimeout = cfg.ProviderTimeout
	gw, err := gateway.New(gwCfg, providers, engineMetrics, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	tax := profile.DefaultTaxonomy()
	if cfg.TaxonomyFile != "" {
		if tax, err = profile.LoadTaxonomy(cfg.TaxonomyFile); err != nil {
			a.close()
			return nil, err
		}
	}

	// Unreadable calibration falls back to default weights and is logged there.
	weights, _ := ranking.LoadCalibration(cfg.CalibrationFile)
	rules := ranking.NewRuleRanker(weights)

	var ranker ranking.Ranker = rules
	if cfg.LLMAPIKey != "" {
		client, err := llm.New(llm.Config{APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMBaseURL, Model: cfg.LLMModel}, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("llm client: %w", err)
		}
		ranker = ranking.NewModelRanker(client, rules, logger)
		logger.Info("model-assisted ranking enabled", "model", cfg.LLMModel)
	}

	engCfg := aggregator.DefaultConfig()
	engCfg.Filter = ranking.FilterConfig{
		MinRelevance:     cfg.MinRelevance,
		RelaxedRelevance: cfg.RelaxedRelevance,
		MinResults:       cfg.MinResults,
		MaxResults:       cfg.MaxResults,
	}
	engine, err := aggregator.New(engCfg, aggregator.Deps{
		Fetcher:   gw,
		Resolver:  dedup.NewResolver(dedup.DefaultTrust()),
		Extractor: profile.NewExtractor(tax, logger),
		Ranker:    ranker,
		Cache:     results,
		Metrics:   engineMetrics,
		Logger:    logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	recommend := api.NewRecommendHandlers(engine, cfg.ProviderTimeout+10*time.Second, logger)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		Checkers:  checkers,
		Providers: gw.Providers(),
	})
	limit := ratelimit.Limit{Calls: cfg.APIRateLimit, Window: cfg.APIRateWindow}
	limited := middleware.RateLimiter(apiLimits, limit, middleware.IPKeyFunc(), httpMetrics)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/recommendations", limited(http.HandlerFunc(recommend.Recommend)))
	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Outermost first: RequestID -> Logging -> Tracing -> HTTPMetrics -> mux
	a.handler = middleware.RequestID(
		middleware.Logging(logger)(
			middleware.Tracing(serviceName)(
				middleware.HTTPMetrics(httpMetrics)(mux),
			),
		),
	)
	return a, nil
}

// buildProviders constructs every provider with an API key. Providers
// without a key are disabled.
func buildProviders(cfg *config.Config, quotas ratelimit.Store, logger *slog.Logger) ([]provider.Provider, error) {
	type spec struct {
		name, key, baseURL string
	}
	specs := []spec{
		{provider.NameTicketmaster, cfg.TicketmasterAPIKey, cfg.TicketmasterURL},
		{provider.NameAllEvents, cfg.AllEventsAPIKey, cfg.AllEventsURL},
		{provider.NameEventbrite, cfg.EventbriteAPIKey, cfg.EventbriteURL},
	}

	var providers []provider.Provider
	for _, s := range specs {
		if s.key == "" {
			logger.Info("provider disabled, no API key", "provider", s.name)
			continue
		}
		pc := provider.DefaultConfig(s.name, s.key)
		if s.baseURL != "" {
			pc.BaseURL = s.baseURL
		}
		if cfg.SearchRadiusKm > 0 {
			pc.RadiusKm = cfg.SearchRadiusKm
		}
		if cfg.ProviderQuotaCalls > 0 {
			pc.Client.Quota = ratelimit.Limit{Calls: cfg.ProviderQuotaCalls, Window: cfg.ProviderQuotaWindow}
		}

		var (
			p   provider.Provider
			err error
		)
		switch s.name {
		case provider.NameTicketmaster:
			p, err = provider.NewTicketmaster(pc, quotas, logger)
		case provider.NameAllEvents:
			p, err = provider.NewAllEvents(pc, quotas, logger)
		case provider.NameEventbrite:
			p, err = provider.NewEventbrite(pc, quotas, logger)
		}
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, errors.New("no event providers configured")
	}
	return providers, nil
}

// janitor prunes in-memory quota windows and expired cache entries until
// ctx is done. It does nothing when Redis backs both.
func (a *app) janitor(ctx context.Context) {
	if a.quotas == nil && a.cache == nil {
		return
	}
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep()
		}
	}
}

func (a *app) sweep() {
	if a.quotas != nil {
		a.quotas.Cleanup(a.maxWindow)
		a.apiLimits.Cleanup(a.maxWindow)
	}
	if a.cache != nil {
		if n := a.cache.Cleanup(); n > 0 {
			a.logger.Debug("expired cache entries removed", "count", n)
		}
	}
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err)
		}
	}
}
