// Package gateway fans a location query out to every configured provider and
// unions whatever comes back in time.
//
// Each provider runs in its own goroutine under its own deadline and circuit
// breaker. A provider that errors, times out or is short-circuited
// contributes zero events; FetchAll itself never fails.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/provider"
	"github.com/onnwee/whatnow/internal/tracing"
)

// Default values for gateway configuration.
const (
	DefaultProviderTimeout = 15 * time.Second
	DefaultBreakerRequests = 10
	DefaultBreakerRatio    = 0.6
	DefaultBreakerInterval = time.Minute
	DefaultBreakerCooldown = 2 * time.Minute
)

// Call outcomes reported to Metrics.
const (
	OutcomeSuccess       = "success"
	OutcomeError         = "error"
	OutcomeTimeout       = "timeout"
	OutcomeCircuitOpen   = "circuit_open"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeCanceled      = "canceled"
)

// ErrNoProviders is returned by New when the provider list is empty.
var ErrNoProviders = errors.New("at least one provider is required")

// Config controls per-provider deadlines and circuit breaking.
type Config struct {
	// ProviderTimeout bounds each provider's Fetch, retries included.
	ProviderTimeout time.Duration

	// BreakerMinRequests is the number of calls in an interval before the
	// failure ratio is considered.
	BreakerMinRequests uint32

	// BreakerFailureRatio opens the breaker once reached.
	BreakerFailureRatio float64

	// BreakerInterval resets the closed-state counts.
	BreakerInterval time.Duration

	// BreakerCooldown is how long an open breaker rejects calls before probing.
	BreakerCooldown time.Duration
}

// DefaultConfig returns the default gateway settings.
func DefaultConfig() Config {
	return Config{
		ProviderTimeout:     DefaultProviderTimeout,
		BreakerMinRequests:  DefaultBreakerRequests,
		BreakerFailureRatio: DefaultBreakerRatio,
		BreakerInterval:     DefaultBreakerInterval,
		BreakerCooldown:     DefaultBreakerCooldown,
	}
}

// Metrics receives per-provider observations. *metrics.Metrics satisfies it.
type Metrics interface {
	ObserveProviderCall(provider, outcome string, elapsed time.Duration)
	AddEventsFetched(provider string, n int)
	SetBreakerState(provider string, state float64)
}

type nopMetrics struct{}

func (nopMetrics) ObserveProviderCall(string, string, time.Duration) {}
func (nopMetrics) AddEventsFetched(string, int)                     {}
func (nopMetrics) SetBreakerState(string, float64)                  {}

// Result is the union of every provider's contribution.
// Events are in provider-arrival order.
type Result struct {
	Events   []event.Event
	Failures []*provider.Error
}

type source struct {
	provider provider.Provider
	breaker  *gobreaker.CircuitBreaker[[]event.Event]
}

// Gateway queries a fixed set of providers concurrently.
type Gateway struct {
	cfg     Config
	sources []source
	metrics Metrics
	logger  *slog.Logger
}

// New creates a Gateway over providers. metrics may be nil.
func New(cfg Config, providers []provider.Provider, m Metrics, logger *slog.Logger) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if cfg.BreakerMinRequests == 0 {
		cfg.BreakerMinRequests = DefaultBreakerRequests
	}
	if cfg.BreakerFailureRatio <= 0 {
		cfg.BreakerFailureRatio = DefaultBreakerRatio
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = DefaultBreakerCooldown
	}
	if m == nil {
		m = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{cfg: cfg, metrics: m, logger: logger}
	for _, p := range providers {
		g.sources = append(g.sources, source{provider: p, breaker: g.newBreaker(p.Name())})
		m.SetBreakerState(p.Name(), stateValue(gobreaker.StateClosed))
	}
	return g, nil
}

func (g *Gateway) newBreaker(name string) *gobreaker.CircuitBreaker[[]event.Event] {
	return gobreaker.NewCircuitBreaker[[]event.Event](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    g.cfg.BreakerInterval,
		Timeout:     g.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < g.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= g.cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("provider circuit breaker state change",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			g.metrics.SetBreakerState(name, stateValue(to))
		},
		// Cancellation by the caller says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Providers returns the names of the configured providers.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.sources))
	for i, s := range g.sources {
		names[i] = s.provider.Name()
	}
	return names
}

type outcome struct {
	provider string
	events   []event.Event
	err      *provider.Error
}

// FetchAll queries every provider concurrently and returns the union of their
// events. It returns once every provider has answered or hit its deadline.
// Cancelling ctx cancels all in-flight provider calls.
func (g *Gateway) FetchAll(ctx context.Context, loc event.Location, hints provider.QueryHints) Result {
	results := make(chan outcome, len(g.sources))

	var wg sync.WaitGroup
	for _, s := range g.sources {
		wg.Add(1)
		go func(s source) {
			defer wg.Done()
			results <- g.fetchOne(ctx, s, loc, hints)
		}(s)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var res Result
	for o := range results {
		if o.err != nil {
			res.Failures = append(res.Failures, o.err)
			continue
		}
		res.Events = append(res.Events, o.events...)
	}
	return res
}

func (g *Gateway) fetchOne(ctx context.Context, s source, loc event.Location, hints provider.QueryHints) outcome {
	name := s.provider.Name()
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ProviderTimeout)
	defer cancel()

	ctx, endSpan := tracing.StartProviderSpan(ctx, name)
	start := time.Now()

	events, err := s.breaker.Execute(func() ([]event.Event, error) {
		return callBounded(ctx, s.provider, loc, hints)
	})
	elapsed := time.Since(start)
	endSpan(err)

	if err != nil {
		result := classify(err)
		g.metrics.ObserveProviderCall(name, result, elapsed)
		g.logger.Warn("provider fetch failed",
			slog.String("provider", name),
			slog.Int64("elapsed_ms", elapsed.Milliseconds()),
			slog.String("outcome", result),
			slog.Any("error", err),
		)
		return outcome{provider: name, err: &provider.Error{Provider: name, Elapsed: elapsed, Err: err}}
	}

	g.metrics.ObserveProviderCall(name, OutcomeSuccess, elapsed)
	g.metrics.AddEventsFetched(name, len(events))
	g.logger.Debug("provider fetch complete",
		slog.String("provider", name),
		slog.Int64("elapsed_ms", elapsed.Milliseconds()),
		slog.Int("events", len(events)),
	)
	return outcome{provider: name, events: events}
}

// callBounded runs Fetch but stops waiting when ctx ends, so an adapter that
// ignores cancellation cannot hold the gateway past its deadline.
func callBounded(ctx context.Context, p provider.Provider, loc event.Location, hints provider.QueryHints) ([]event.Event, error) {
	type reply struct {
		events []event.Event
		err    error
	}
	done := make(chan reply, 1)
	go func() {
		events, err := p.Fetch(ctx, loc, hints)
		done <- reply{events, err}
	}()

	select {
	case r := <-done:
		return r.events, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return OutcomeCircuitOpen
	case errors.Is(err, provider.ErrQuotaExceeded):
		return OutcomeQuotaExceeded
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
