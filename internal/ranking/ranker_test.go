package ranking

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/profile"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestRuleRanker() *RuleRanker {
	r := NewRuleRanker(nil)
	r.now = func() time.Time { return testNow }
	return r
}

func canonical(id, name, description string) event.CanonicalEvent {
	return event.NewCanonical(event.Event{
		ID:          id,
		Name:        name,
		Description: description,
		Category:    "Arts & Theatre",
		Venue:       "Punch Line",
		Date:        "2026-10-19",
		Time:        "20:00",
		Location:    event.Location{Latitude: 37.7749, Longitude: -122.4194},
		Source:      "ticketmaster",
	})
}

func TestRuleRanker_ExactPhraseMonotonicity(t *testing.T) {
	withPhrase := canonical("a", "Friday Night Laughs", "A comedy show tonight with local headliners downtown.")
	without := canonical("b", "Friday Night Laughs", "An evening of laughs with local headliners downtown.")

	ranked, _ := newTestRuleRanker().Rank(context.Background(),
		[]event.CanonicalEvent{without, withPhrase},
		Request{Activity: "comedy show tonight"})

	scores := map[string]float64{}
	for _, e := range ranked {
		scores[e.ID] = e.RelevanceScore
	}
	if scores["a"] < scores["b"] {
		t.Errorf("event containing the exact phrase scored %f < %f", scores["a"], scores["b"])
	}
	if ranked[0].ID != "a" {
		t.Errorf("expected exact phrase event first, got %s", ranked[0].ID)
	}
}

func TestRuleRanker_SortsWithoutMutatingInput(t *testing.T) {
	events := []event.CanonicalEvent{
		canonical("1", "Hockey Night", ""),
		canonical("2", "Comedy Show", "Stand-up comedy show tonight in the Mission."),
		canonical("3", "Comedy Open Mic", ""),
	}
	r := newTestRuleRanker()
	ranked, diag := r.Rank(context.Background(), events, Request{Activity: "comedy show tonight"})

	if len(ranked) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].RelevanceScore > ranked[i-1].RelevanceScore {
			t.Errorf("not sorted at %d: %f > %f", i, ranked[i].RelevanceScore, ranked[i-1].RelevanceScore)
		}
	}
	if ranked[0].ID != "2" {
		t.Errorf("expected event 2 first, got %s", ranked[0].ID)
	}
	for _, e := range events {
		if e.RelevanceScore != 0 || e.PersonalizationFactors != nil {
			t.Errorf("input event %s was modified", e.ID)
		}
	}

	if diag.Method != MethodRules || diag.EvaluatedCount != 3 {
		t.Errorf("unexpected diagnostics: %+v", diag)
	}
	total := 0.0
	for _, e := range ranked {
		total += e.RelevanceScore
		if e.RelevanceScore < 0 || e.RelevanceScore > 1 {
			t.Errorf("score %f outside [0,1]", e.RelevanceScore)
		}
		if e.RecommendationReason == "" {
			t.Errorf("event %s has no reason", e.ID)
		}
		if _, ok := e.PersonalizationFactors[event.FactorPromptMatch]; !ok {
			t.Errorf("event %s missing prompt factor", e.ID)
		}
	}
	if math.Abs(diag.AverageScore-total/3) > 1e-9 {
		t.Errorf("average = %f, want %f", diag.AverageScore, total/3)
	}
}

func TestRuleRanker_ProfileRaisesMatchingCategory(t *testing.T) {
	music := canonical("m", "Evening Set", "")
	music.Category = "Music"
	sports := canonical("s", "Evening Set", "")
	sports.Category = "Sports"

	p := &profile.Profile{Interests: []profile.Interest{
		{Category: "music", Keywords: []string{"jazz"}, Confidence: 0.9, Frequency: 1},
	}}
	ranked, _ := newTestRuleRanker().Rank(context.Background(),
		[]event.CanonicalEvent{sports, music}, Request{Profile: p})

	if ranked[0].ID != "m" {
		t.Errorf("expected interest match to rank music first, got %s", ranked[0].ID)
	}
}

func TestRuleRanker_Empty(t *testing.T) {
	ranked, diag := newTestRuleRanker().Rank(context.Background(), nil, Request{Activity: "anything"})
	if len(ranked) != 0 || diag.EvaluatedCount != 0 || diag.AverageScore != 0 {
		t.Errorf("unexpected result for empty input: %v %+v", ranked, diag)
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		name     string
		factors  map[string]float64
		activity string
		want     string
	}{
		{
			name:     "close prompt match and soon",
			factors:  map[string]float64{event.FactorPromptMatch: 1, event.FactorTimeRelevance: 1},
			activity: "comedy show",
			want:     `Recommended because it closely matches your request for "comedy show" and is happening soon`,
		},
		{
			name:     "partial matches",
			factors:  map[string]float64{event.FactorPromptMatch: 0.5, event.FactorInterestMatch: 0.5},
			activity: "jazz",
			want:     `Recommended because it relates to your request for "jazz" and matches some of your interests`,
		},
		{
			name:    "profile and detail",
			factors: map[string]float64{event.FactorInterestMatch: 0.9, event.FactorCompleteness: 1},
			want:    "Recommended because it aligns with your profile interests and has detailed information available",
		},
		{
			name:     "prompt ignored without activity",
			factors:  map[string]float64{event.FactorPromptMatch: 1},
			activity: "  ",
			want:     defaultReason,
		},
		{
			name:    "nothing notable",
			factors: map[string]float64{},
			want:    defaultReason,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.factors, tt.activity); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := Reason(map[string]float64{event.FactorTimeRelevance: 1}, ""); !strings.HasPrefix(got, "Recommended because") {
		t.Errorf("unexpected reason %q", got)
	}
}
