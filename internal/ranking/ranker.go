package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/profile"
)

// Ranking methods reported in Diagnostics.
const (
	MethodModel = "model-assisted"
	MethodRules = "rule-based"
)

// Request is what the events are ranked against.
type Request struct {
	Activity string
	// Profile may be nil. It is never modified.
	Profile *profile.Profile
}

// Diagnostics summarizes one ranking pass.
type Diagnostics struct {
	Method         string  `json:"method"`
	EvaluatedCount int     `json:"evaluated_count"`
	AverageScore   float64 `json:"average_score"`
	// FallbackReason is set when the model-assisted path was abandoned.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Ranker scores canonical events. Rank returns new values sorted by
// descending relevance and leaves the input untouched.
type Ranker interface {
	Rank(ctx context.Context, events []event.CanonicalEvent, req Request) ([]event.CanonicalEvent, Diagnostics)
}

// RuleRanker is the deterministic weighted-sum ranker.
type RuleRanker struct {
	weights *Weights
	now     func() time.Time
}

// NewRuleRanker creates a RuleRanker. Nil weights use DefaultWeights.
func NewRuleRanker(weights *Weights) *RuleRanker {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &RuleRanker{weights: weights, now: time.Now}
}

// Rank implements Ranker.
func (r *RuleRanker) Rank(_ context.Context, events []event.CanonicalEvent, req Request) ([]event.CanonicalEvent, Diagnostics) {
	out := r.scoreAll(events, req)
	sortByScore(out)
	return out, diagnose(MethodRules, out)
}

// scoreAll scores events in input order.
func (r *RuleRanker) scoreAll(events []event.CanonicalEvent, req Request) []event.CanonicalEvent {
	now := r.now()
	out := make([]event.CanonicalEvent, len(events))
	for i, e := range events {
		params := r.params(e.Event, req, now)
		factors := params.Factors()
		out[i] = e.WithScore(CompositeScore(params, r.weights), Reason(factors, req.Activity), factors)
	}
	return out
}

func (r *RuleRanker) params(e event.Event, req Request, now time.Time) Params {
	text := EventText(e)
	return Params{
		Prompt:       PromptMatch(req.Activity, text),
		Interest:     InterestMatch(e, text, req.Profile),
		Behavioral:   BehavioralMatch(text, req.Profile),
		Time:         TimeRelevance(e, now),
		Completeness: Quality(e),
	}
}

// sortByScore orders events by descending relevance, keeping input order
// for equal scores.
func sortByScore(events []event.CanonicalEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].RelevanceScore > events[j].RelevanceScore
	})
}

func diagnose(method string, events []event.CanonicalEvent) Diagnostics {
	d := Diagnostics{Method: method, EvaluatedCount: len(events)}
	if len(events) == 0 {
		return d
	}
	total := 0.0
	for _, e := range events {
		total += e.RelevanceScore
	}
	d.AverageScore = total / float64(len(events))
	return d
}
