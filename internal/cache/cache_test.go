package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/profile"
	"github.com/onnwee/whatnow/internal/ranking"
)

var sf = event.Location{Latitude: 37.7749, Longitude: -122.4194}

func sampleEntry() *Entry {
	return &Entry{
		Events: []event.CanonicalEvent{
			{Event: event.Event{ID: "ticketmaster_1", Name: "Comedy Night", Source: "ticketmaster"}, RelevanceScore: 0.8},
		},
		Diagnostics: ranking.Diagnostics{Method: ranking.MethodRules, EvaluatedCount: 1, AverageScore: 0.8},
		StoredAt:    time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	base := Key(sf, "Comedy show tonight!", "")

	if !strings.HasPrefix(base, "9q8yy:") {
		t.Errorf("key %q should start with the geohash cell", base)
	}
	if got := Key(sf, "  comedy   SHOW tonight ", ""); got != base {
		t.Errorf("normalized activity should share a key: %q vs %q", got, base)
	}
	nearby := event.Location{Latitude: 37.7750, Longitude: -122.4195}
	if got := Key(nearby, "comedy show tonight", ""); got != base {
		t.Errorf("nearby point should share a key: %q vs %q", got, base)
	}
	if got := Key(sf, "jazz", ""); got == base {
		t.Error("different activity must not share a key")
	}
	if got := Key(sf, "comedy show tonight", "music"); got == base {
		t.Error("different variant must not share a key")
	}
	berlin := event.Location{Latitude: 52.52, Longitude: 13.405}
	if got := Key(berlin, "comedy show tonight", ""); got == base {
		t.Error("distant location must not share a key")
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("empty cache should miss")
	}

	entry := sampleEntry()
	c.Set(ctx, "k", entry)
	entry.Events[0].Name = "mutated after set"

	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Events[0].Name != "Comedy Night" {
		t.Errorf("cache should hold its own copy, got %q", got.Events[0].Name)
	}
	if got.Diagnostics.Method != ranking.MethodRules {
		t.Errorf("diagnostics not stored: %+v", got.Diagnostics)
	}

	got.Events[0].Name = "mutated after get"
	again, _ := c.Get(ctx, "k")
	if again.Events[0].Name != "Comedy Night" {
		t.Error("callers must not be able to modify cached events")
	}

	c.Set(ctx, "nil", nil)
	if _, ok := c.Get(ctx, "nil"); ok {
		t.Error("nil entries should not be stored")
	}
}

func TestMemoryCache_KeepsProfileAndCounts(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	entry := sampleEntry()
	entry.RawCount, entry.DedupedCount, entry.ProvidersFailed = 12, 10, 1
	entry.Profile = &profile.Profile{Interests: []profile.Interest{{Category: "comedy", Confidence: 0.6}}}
	c.Set(ctx, "k", entry)
	entry.Profile.Interests[0].Category = "mutated after set"

	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.RawCount != 12 || got.DedupedCount != 10 || got.ProvidersFailed != 1 {
		t.Errorf("counts = %d/%d/%d, want 12/10/1", got.RawCount, got.DedupedCount, got.ProvidersFailed)
	}
	if got.Profile == nil || len(got.Profile.Interests) != 1 || got.Profile.Interests[0].Category != "comedy" {
		t.Fatalf("profile = %+v, want its own copy with the comedy interest", got.Profile)
	}

	got.Profile.Interests[0].Category = "mutated after get"
	again, _ := c.Get(ctx, "k")
	if again.Profile.Interests[0].Category != "comedy" {
		t.Error("callers must not be able to modify the cached profile")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(15 * time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "a", sampleEntry())
	now = now.Add(10 * time.Minute)
	c.Set(ctx, "b", sampleEntry())

	now = now.Add(5 * time.Minute)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("entry at exactly its TTL should be expired")
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Error("fresh entry should still hit")
	}

	now = now.Add(time.Hour)
	if removed := c.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
}

func TestNewMemoryCache_DefaultTTL(t *testing.T) {
	if c := NewMemoryCache(0); c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
}
