// Package metrics exposes Prometheus collectors for the recommendation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricProviderRequests  = "whatnow_provider_requests_total"
	MetricProviderLatency   = "whatnow_provider_latency_seconds"
	MetricEventsFetched     = "whatnow_events_fetched_total"
	MetricDuplicatesRemoved = "whatnow_duplicates_removed_total"
	MetricRankings          = "whatnow_rankings_total"
	MetricRankingFallbacks  = "whatnow_ranking_fallbacks_total"
	MetricRequestDuration   = "whatnow_recommendation_duration_seconds"
	MetricCacheRequests     = "whatnow_cache_requests_total"
	MetricBreakerState      = "whatnow_provider_breaker_state"
)

// Metrics holds the engine's collectors. Safe for concurrent use.
type Metrics struct {
	providerRequests  *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	eventsFetched     *prometheus.CounterVec
	duplicatesRemoved prometheus.Counter
	rankings          *prometheus.CounterVec
	rankingFallbacks  prometheus.Counter
	requestDuration   prometheus.Histogram
	cacheRequests     *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

// NewMetrics creates unregistered collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricProviderRequests,
			Help: "Provider fetches by outcome (success, error, timeout, circuit_open, quota_exceeded)",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricProviderLatency,
			Help:    "Provider fetch latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"provider"}),
		eventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEventsFetched,
			Help: "Normalized events returned by each provider",
		}, []string{"provider"}),
		duplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDuplicatesRemoved,
			Help: "Events collapsed into an existing canonical event",
		}),
		rankings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRankings,
			Help: "Ranking passes by method",
		}, []string{"method"}),
		rankingFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankingFallbacks,
			Help: "Model-assisted rankings that fell back to the rule-based ranker",
		}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRequestDuration,
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCacheRequests,
			Help: "Result cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricBreakerState,
			Help: "Provider circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"provider"}),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveProviderCall records one provider fetch.
func (m *Metrics) ObserveProviderCall(provider, outcome string, elapsed time.Duration) {
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// AddEventsFetched counts events returned by provider.
func (m *Metrics) AddEventsFetched(provider string, n int) {
	m.eventsFetched.WithLabelValues(provider).Add(float64(n))
}

// SetBreakerState records a provider's circuit breaker state.
func (m *Metrics) SetBreakerState(provider string, state float64) {
	m.breakerState.WithLabelValues(provider).Set(state)
}

// AddDuplicatesRemoved counts events dropped by deduplication.
func (m *Metrics) AddDuplicatesRemoved(n int) {
	m.duplicatesRemoved.Add(float64(n))
}

// IncRanking counts a ranking pass by method.
func (m *Metrics) IncRanking(method string) {
	m.rankings.WithLabelValues(method).Inc()
}

// IncRankingFallback counts a model-assisted ranking that fell back.
func (m *Metrics) IncRankingFallback() {
	m.rankingFallbacks.Inc()
}

// ObserveRecommendation records end-to-end latency.
func (m *Metrics) ObserveRecommendation(elapsed time.Duration) {
	m.requestDuration.Observe(elapsed.Seconds())
}

// IncCache counts a cache lookup result.
func (m *Metrics) IncCache(result string) {
	m.cacheRequests.WithLabelValues(result).Inc()
}

// Collectors returns every collector.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.providerRequests,
		m.providerLatency,
		m.eventsFetched,
		m.duplicatesRemoved,
		m.rankings,
		m.rankingFallbacks,
		m.requestDuration,
		m.cacheRequests,
		m.breakerState,
	}
}
