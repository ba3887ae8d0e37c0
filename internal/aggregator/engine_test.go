package aggregator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/whatnow/internal/cache"
	"github.com/onnwee/whatnow/internal/dedup"
	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/gateway"
	"github.com/onnwee/whatnow/internal/profile"
	"github.com/onnwee/whatnow/internal/provider"
	"github.com/onnwee/whatnow/internal/ranking"
)

var sanFrancisco = event.Location{Latitude: 37.7749, Longitude: -122.4194, City: "San Francisco", Country: "US"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubProvider struct {
	name   string
	events []event.Event
	delay  time.Duration
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, _ event.Location, _ provider.QueryHints) ([]event.Event, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.events, nil
}

type stubFetcher struct {
	result gateway.Result
	calls  atomic.Int32

	mu    sync.Mutex
	hints provider.QueryHints
}

func (f *stubFetcher) FetchAll(_ context.Context, _ event.Location, hints provider.QueryHints) gateway.Result {
	f.calls.Add(1)
	f.mu.Lock()
	f.hints = hints
	f.mu.Unlock()
	return f.result
}

type recordingMetrics struct {
	mu         sync.Mutex
	duplicates int
	methods    []string
	fallbacks  int
	cache      []string
	observed   int
}

func (r *recordingMetrics) AddDuplicatesRemoved(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicates += n
}

func (r *recordingMetrics) IncRanking(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = append(r.methods, method)
}

func (r *recordingMetrics) IncRankingFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

func (r *recordingMetrics) ObserveRecommendation(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed++
}

func (r *recordingMetrics) IncCache(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = append(r.cache, result)
}

type malformedBackend struct{ calls atomic.Int32 }

func (b *malformedBackend) Complete(context.Context, string, string) (string, error) {
	b.calls.Add(1)
	return "I think the first one is best!", nil
}

func comedyEvent(source string, i int) event.Event {
	today := time.Now().UTC().Format(event.DateLayout)
	return event.Event{
		ID:          fmt.Sprintf("%s-%d", source, i),
		Name:        fmt.Sprintf("%s Showcase %d", source, i),
		Date:        today,
		Time:        "20:00",
		Venue:       fmt.Sprintf("Venue %s %d", source, i),
		Location:    sanFrancisco,
		Category:    "Comedy",
		Description: "An evening of stand-up comedy from local comedians.",
		ImageURL:    "https://img.example.com/show.jpg",
		URL:         "https://tickets.example.com/" + source,
		Source:      source,
	}
}

// twoProviders returns 5 and 7 events with two cross-provider duplicates.
func twoProviders() (*stubProvider, *stubProvider) {
	today := time.Now().UTC().Format(event.DateLayout)
	a := &stubProvider{name: provider.NameTicketmaster}
	for i := range 5 {
		a.events = append(a.events, comedyEvent("ticketmaster", i))
	}
	b := &stubProvider{name: provider.NameAllEvents}
	for i := range 5 {
		b.events = append(b.events, comedyEvent("allevents", i))
	}
	b.events = append(b.events,
		event.Event{
			ID: "ae-dup-0", Name: "The " + a.events[0].Name, Date: today,
			Venue: a.events[0].Venue, Location: sanFrancisco, Source: "allevents",
		},
		event.Event{
			ID: "ae-dup-1", Name: a.events[1].Name + "!", Date: today,
			Venue: a.events[1].Venue, Location: sanFrancisco, Source: "allevents",
		},
	)
	return a, b
}

func newGateway(t *testing.T, timeout time.Duration, providers ...provider.Provider) *gateway.Gateway {
	t.Helper()
	cfg := gateway.DefaultConfig()
	cfg.ProviderTimeout = timeout
	g, err := gateway.New(cfg, providers, nil, discardLogger())
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	return g
}

func newEngine(t *testing.T, deps Deps) *Engine {
	t.Helper()
	if deps.Ranker == nil {
		deps.Ranker = ranking.NewRuleRanker(nil)
	}
	deps.Logger = discardLogger()
	e, err := New(DefaultConfig(), deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(DefaultConfig(), Deps{Ranker: ranking.NewRuleRanker(nil)}); !errors.Is(err, ErrMissingFetcher) {
		t.Errorf("missing fetcher: err = %v", err)
	}
	if _, err := New(DefaultConfig(), Deps{Fetcher: &stubFetcher{}}); !errors.Is(err, ErrMissingRanker) {
		t.Errorf("missing ranker: err = %v", err)
	}

	cfg := DefaultConfig()
	cfg.Filter.MinRelevance = 2
	if _, err := New(cfg, Deps{Fetcher: &stubFetcher{}, Ranker: ranking.NewRuleRanker(nil)}); !errors.Is(err, ranking.ErrInvalidRelevance) {
		t.Errorf("bad filter: err = %v, want ErrInvalidRelevance", err)
	}

	cfg = DefaultConfig()
	cfg.MaxHintCategories = -1
	if _, err := New(cfg, Deps{Fetcher: &stubFetcher{}, Ranker: ranking.NewRuleRanker(nil)}); !errors.Is(err, ErrInvalidMaxHints) {
		t.Errorf("bad hints: err = %v, want ErrInvalidMaxHints", err)
	}
}

func TestRecommend_ComedyTonightEndToEnd(t *testing.T) {
	a, b := twoProviders()
	m := &recordingMetrics{}
	e := newEngine(t, Deps{
		Fetcher:  newGateway(t, time.Second, a, b),
		Resolver: dedup.NewResolver(nil),
		Metrics:  m,
	})

	res, err := e.Recommend(context.Background(), Request{
		Location:  sanFrancisco,
		Activity:  "comedy show tonight",
		Auxiliary: map[string]string{"bio": "I love stand-up comedy and improv"},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if len(res.Events) > 10 {
		t.Errorf("got %d events, want at most 10", len(res.Events))
	}
	if len(res.Events) != 10 {
		t.Errorf("got %d events, want all 10 canonical events", len(res.Events))
	}
	if !slices.IsSortedFunc(res.Events, func(x, y event.CanonicalEvent) int {
		switch {
		case x.RelevanceScore > y.RelevanceScore:
			return -1
		case x.RelevanceScore < y.RelevanceScore:
			return 1
		}
		return 0
	}) {
		t.Error("events not sorted by descending relevance")
	}

	seen := map[string]int{}
	for _, ev := range res.Events {
		seen[dedup.IdentityKey(ev.Event)]++
		if ev.RecommendationReason == "" {
			t.Errorf("event %q has no reason", ev.Name)
		}
	}
	for key, n := range seen {
		if n != 1 {
			t.Errorf("identity %q appears %d times", key, n)
		}
	}
	for _, ev := range res.Events {
		if ev.ID == "ae-dup-0" || ev.ID == "ae-dup-1" {
			t.Errorf("less complete duplicate %q survived", ev.ID)
		}
	}

	d := res.Diagnostics
	if d.RawCount != 12 || d.DedupedCount != 10 || d.ProvidersFailed != 0 {
		t.Errorf("diagnostics = %+v, want raw 12 deduped 10 failed 0", d)
	}
	if d.Method != ranking.MethodRules || d.EvaluatedCount != 10 {
		t.Errorf("ranking diagnostics = %+v", d.Diagnostics)
	}
	if m.duplicates != 2 {
		t.Errorf("duplicates metric = %d, want 2", m.duplicates)
	}
	if !slices.Equal(m.methods, []string{ranking.MethodRules}) {
		t.Errorf("ranking metric = %v", m.methods)
	}
	if m.observed != 1 {
		t.Errorf("observed %d requests, want 1", m.observed)
	}
	if res.Profile == nil {
		t.Fatal("expected a profile")
	}
	hasComedy := false
	for _, in := range res.Profile.Interests {
		if in.Category == "comedy" {
			hasComedy = true
		}
	}
	if !hasComedy {
		t.Fatalf("profile interests = %+v, want comedy from the bio", res.Profile.Interests)
	}
	for _, ev := range res.Events {
		if ev.PersonalizationFactors[event.FactorInterestMatch] <= 0 {
			t.Errorf("event %q interest_match = %f, want > 0 for a comedy profile",
				ev.Name, ev.PersonalizationFactors[event.FactorInterestMatch])
		}
	}
}

func TestRecommend_ActivityAloneBelowInterestFloor(t *testing.T) {
	a, b := twoProviders()
	e := newEngine(t, Deps{
		Fetcher:  newGateway(t, time.Second, a, b),
		Resolver: dedup.NewResolver(nil),
	})

	res, err := e.Recommend(context.Background(), Request{Location: sanFrancisco, Activity: "comedy show tonight"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if res.Profile == nil {
		t.Fatal("expected a profile")
	}
	// One comedy keyword out of twelve stays under the minimum confidence.
	if len(res.Profile.Interests) != 0 {
		t.Errorf("interests = %+v, want none", res.Profile.Interests)
	}
	if len(res.Events) == 0 {
		t.Error("expected prompt-matched events without interests")
	}
}

func TestRecommend_AllProvidersTimeOut(t *testing.T) {
	slow := []provider.Provider{
		&stubProvider{name: "a", delay: 5 * time.Second},
		&stubProvider{name: "b", delay: 5 * time.Second},
	}
	e := newEngine(t, Deps{Fetcher: newGateway(t, 50*time.Millisecond, slow...)})

	start := time.Now()
	res, err := e.Recommend(context.Background(), Request{Location: sanFrancisco, Activity: "jazz"})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Recommend() error = %v, want nil", err)
	}
	if res.Events == nil || len(res.Events) != 0 {
		t.Errorf("Events = %#v, want empty non-nil slice", res.Events)
	}
	if res.Diagnostics.ProvidersFailed != 2 {
		t.Errorf("ProvidersFailed = %d, want 2", res.Diagnostics.ProvidersFailed)
	}
	if elapsed > time.Second {
		t.Errorf("Recommend took %v, want it bounded by the provider timeout", elapsed)
	}
}

func TestRecommend_InvalidLocation(t *testing.T) {
	f := &stubFetcher{}
	e := newEngine(t, Deps{Fetcher: f})

	for _, loc := range []event.Location{
		{Latitude: 91, Longitude: 0},
		{Latitude: 0, Longitude: -181},
	} {
		_, err := e.Recommend(context.Background(), Request{Location: loc, Activity: "music"})
		if !errors.Is(err, event.ErrInvalidLocation) {
			t.Errorf("Recommend(%+v) error = %v, want ErrInvalidLocation", loc, err)
		}
	}
	if f.calls.Load() != 0 {
		t.Errorf("fetcher called %d times for invalid input", f.calls.Load())
	}
}

func TestRecommend_ParentCancelled(t *testing.T) {
	f := &stubFetcher{}
	e := newEngine(t, Deps{Fetcher: f})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Recommend(ctx, Request{Location: sanFrancisco, Activity: "music"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRecommend_CacheHit(t *testing.T) {
	a, _ := twoProviders()
	f := &stubFetcher{result: gateway.Result{Events: a.events}}
	m := &recordingMetrics{}
	e := newEngine(t, Deps{Fetcher: f, Cache: cache.NewMemoryCache(time.Minute), Metrics: m})

	req := Request{Location: sanFrancisco, Activity: "comedy show tonight"}
	first, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("first Recommend() error = %v", err)
	}
	second, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("second Recommend() error = %v", err)
	}

	if f.calls.Load() != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls.Load())
	}
	if first.Diagnostics.Cached || !second.Diagnostics.Cached {
		t.Errorf("Cached = %v then %v, want false then true", first.Diagnostics.Cached, second.Diagnostics.Cached)
	}
	if len(second.Events) != len(first.Events) {
		t.Errorf("cached result has %d events, want %d", len(second.Events), len(first.Events))
	}
	if second.Profile == nil {
		t.Error("cached result should carry the profile")
	} else if second.Profile.ActivityContext != first.Profile.ActivityContext {
		t.Errorf("cached profile context = %+v, want %+v", second.Profile.ActivityContext, first.Profile.ActivityContext)
	}
	if second.Diagnostics.RawCount != first.Diagnostics.RawCount ||
		second.Diagnostics.DedupedCount != first.Diagnostics.DedupedCount ||
		second.Diagnostics.ProvidersFailed != first.Diagnostics.ProvidersFailed {
		t.Errorf("cached diagnostics = %+v, want counts from %+v", second.Diagnostics, first.Diagnostics)
	}
	if !slices.Equal(m.cache, []string{CacheMiss, CacheHit}) {
		t.Errorf("cache metrics = %v", m.cache)
	}

	// A different profile is a different result.
	req.Profile = &profile.Profile{Preferences: profile.Preferences{PreferredCategories: []string{"music"}}}
	if _, err := e.Recommend(context.Background(), req); err != nil {
		t.Fatalf("profiled Recommend() error = %v", err)
	}
	if f.calls.Load() != 2 {
		t.Errorf("fetcher called %d times, want 2 after profile change", f.calls.Load())
	}
}

func TestRecommend_EmptyResultNotCached(t *testing.T) {
	f := &stubFetcher{}
	e := newEngine(t, Deps{Fetcher: f, Cache: cache.NewMemoryCache(time.Minute)})

	req := Request{Location: sanFrancisco, Activity: "music"}
	for range 2 {
		if _, err := e.Recommend(context.Background(), req); err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
	}
	if f.calls.Load() != 2 {
		t.Errorf("fetcher called %d times, want 2", f.calls.Load())
	}
}

func TestRecommend_MalformedModelOutputFallsBack(t *testing.T) {
	a, b := twoProviders()
	backend := &malformedBackend{}
	m := &recordingMetrics{}
	e := newEngine(t, Deps{
		Fetcher: newGateway(t, time.Second, a, b),
		Ranker:  ranking.NewModelRanker(backend, nil, discardLogger()),
		Metrics: m,
	})

	res, err := e.Recommend(context.Background(), Request{Location: sanFrancisco, Activity: "comedy show tonight"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if backend.calls.Load() == 0 {
		t.Fatal("backend was never asked")
	}
	if res.Diagnostics.Method != ranking.MethodRules || res.Diagnostics.FallbackReason == "" {
		t.Errorf("diagnostics = %+v, want rule-based fallback", res.Diagnostics.Diagnostics)
	}
	if res.Diagnostics.EvaluatedCount != 10 || len(res.Events) != 10 {
		t.Errorf("evaluated %d, returned %d; want every candidate kept", res.Diagnostics.EvaluatedCount, len(res.Events))
	}
	if m.fallbacks != 1 {
		t.Errorf("fallback metric = %d, want 1", m.fallbacks)
	}
}

func TestQueryHints(t *testing.T) {
	e := newEngine(t, Deps{Fetcher: &stubFetcher{}})

	tests := []struct {
		name           string
		req            Request
		wantCategories []string
		wantKeywords   []string
	}{
		{
			name:           "activity category",
			req:            Request{Activity: "comedy show tonight"},
			wantCategories: []string{"comedy"},
			wantKeywords:   []string{"comedy", "show"},
		},
		{
			name: "profile categories first",
			req: Request{
				Activity: "jazz and comedy",
				Profile:  &profile.Profile{Preferences: profile.Preferences{PreferredCategories: []string{"food", "comedy"}}},
			},
			wantCategories: []string{"food", "comedy", "music"},
			wantKeywords:   []string{"jazz", "comedy"},
		},
		{
			name:           "defaults",
			req:            Request{Activity: "something fun"},
			wantCategories: []string{"music", "arts", "food"},
			wantKeywords:   []string{"fun"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := e.queryHints(tt.req)
			if !slices.Equal(h.Categories, tt.wantCategories) {
				t.Errorf("Categories = %v, want %v", h.Categories, tt.wantCategories)
			}
			if !slices.Equal(h.Keywords, tt.wantKeywords) {
				t.Errorf("Keywords = %v, want %v", h.Keywords, tt.wantKeywords)
			}
		})
	}
}

func TestQueryHints_CappedCategories(t *testing.T) {
	e := newEngine(t, Deps{Fetcher: &stubFetcher{}})
	h := e.queryHints(Request{Activity: "jazz comedy painting hiking cooking"})
	if len(h.Categories) != DefaultMaxHintCategories {
		t.Errorf("got %d categories, want %d", len(h.Categories), DefaultMaxHintCategories)
	}
}
