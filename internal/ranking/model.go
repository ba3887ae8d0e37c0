package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"github.com/onnwee/whatnow/internal/event"
)

// DefaultBatchSize is the largest number of candidates sent in one prompt.
const DefaultBatchSize = 50

// maxModelScore is the top of the backend's scoring scale.
const maxModelScore = 10.0

const maxPromptDescriptionLen = 300

const systemPrompt = "You are an event recommendation system. Rank events by how well they " +
	"match what the user wants to do. Be objective and respond with JSON only."

// ErrMalformedRanking is returned when a backend response is not a complete,
// well-formed ranking of the submitted candidates.
var ErrMalformedRanking = errors.New("malformed ranking response")

// Backend is a text-ranking service that answers a prompt with free text.
type Backend interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// BackendError reports a model-assisted ranking attempt that could not be used.
type BackendError struct {
	Batch int
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("ranking backend failed on batch %d: %v", e.Batch, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ModelRanker asks a Backend to score candidates and falls back to the rule
// ranker for the whole candidate set when any batch fails.
type ModelRanker struct {
	backend   Backend
	rules     *RuleRanker
	batchSize int
	logger    *slog.Logger
}

// NewModelRanker creates a ModelRanker. A nil rules ranker uses default weights.
func NewModelRanker(backend Backend, rules *RuleRanker, logger *slog.Logger) *ModelRanker {
	if rules == nil {
		rules = NewRuleRanker(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelRanker{
		backend:   backend,
		rules:     rules,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// candidate is one event as presented to the backend.
type candidate struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Description string `json:"description,omitempty"`
}

type judgement struct {
	score  float64
	reason string
}

// Rank implements Ranker.
func (m *ModelRanker) Rank(ctx context.Context, events []event.CanonicalEvent, req Request) ([]event.CanonicalEvent, Diagnostics) {
	scored := m.rules.scoreAll(events, req)
	if len(events) == 0 {
		return scored, diagnose(MethodModel, scored)
	}

	if strings.TrimSpace(req.Activity) == "" {
		for i := range scored {
			scored[i] = scored[i].WithScore(0.5, neutralReason, scored[i].PersonalizationFactors)
		}
		return scored, diagnose(MethodModel, scored)
	}

	judged, err := m.judgeAll(ctx, req.Activity, events)
	if err != nil {
		m.logger.Warn("model ranking failed, using rule-based ranking",
			"events", len(events),
			"reason", err.Error(),
		)
		sortByScore(scored)
		d := diagnose(MethodRules, scored)
		d.FallbackReason = err.Error()
		return scored, d
	}

	for i, j := range judged {
		factors := scored[i].PersonalizationFactors
		factors[event.FactorModelScore] = j.score
		reason := j.reason
		if reason == "" {
			reason = scored[i].RecommendationReason
		}
		scored[i] = scored[i].WithScore(j.score, reason, factors)
	}
	sortByScore(scored)
	return scored, diagnose(MethodModel, scored)
}

// judgeAll returns one judgement per event, in input order.
func (m *ModelRanker) judgeAll(ctx context.Context, activity string, events []event.CanonicalEvent) ([]judgement, error) {
	if m.backend == nil {
		return nil, &BackendError{Err: errors.New("no backend configured")}
	}
	out := make([]judgement, 0, len(events))
	for start, batch := 0, 0; start < len(events); start, batch = start+m.batchSize, batch+1 {
		end := min(start+m.batchSize, len(events))
		prompt, err := buildPrompt(activity, events[start:end])
		if err != nil {
			return nil, &BackendError{Batch: batch, Err: err}
		}
		raw, err := m.backend.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return nil, &BackendError{Batch: batch, Err: err}
		}
		judged, err := parseJudgements(raw, end-start)
		if err != nil {
			return nil, &BackendError{Batch: batch, Err: err}
		}
		out = append(out, judged...)
	}
	return out, nil
}

func buildPrompt(activity string, events []event.CanonicalEvent) (string, error) {
	candidates := make([]candidate, len(events))
	for i, e := range events {
		desc := []rune(e.Description)
		if len(desc) > maxPromptDescriptionLen {
			desc = desc[:maxPromptDescriptionLen]
		}
		candidates[i] = candidate{
			Index:       i,
			Name:        e.Name,
			Category:    e.Category,
			Venue:       e.Venue,
			Date:        e.Date,
			Time:        e.Time,
			Description: string(desc),
		}
	}
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I want to do: %q\n\n", activity)
	b.WriteString("Score every event below from 0 (not relevant) to 10 (perfect match) for what I want to do. ")
	b.WriteString("Consider direct activity matches, related activities, the event description and practical timing.\n\n")
	b.WriteString("Events:\n")
	b.Write(data)
	b.WriteString("\n\nRespond with a JSON array containing exactly one entry per event, in this format:\n")
	b.WriteString(`[{"index": 0, "score": 9.5, "reason": "short reason"}]`)
	b.WriteString("\nInclude ALL events.\n")
	return b.String(), nil
}

// parseJudgements extracts the JSON array from raw and checks that it scores
// each of the n candidates exactly once within the scoring scale.
func parseJudgements(raw string, n int) ([]judgement, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array found", ErrMalformedRanking)
	}

	var items []struct {
		Index  *int     `json:"index"`
		Score  *float64 `json:"score"`
		Reason string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRanking, err)
	}
	if len(items) != n {
		return nil, fmt.Errorf("%w: got %d judgements for %d events", ErrMalformedRanking, len(items), n)
	}

	out := make([]judgement, n)
	seen := make([]bool, n)
	for _, item := range items {
		if item.Index == nil || item.Score == nil {
			return nil, fmt.Errorf("%w: judgement missing index or score", ErrMalformedRanking)
		}
		idx, score := *item.Index, *item.Score
		if idx < 0 || idx >= n || seen[idx] {
			return nil, fmt.Errorf("%w: invalid or repeated index %d", ErrMalformedRanking, idx)
		}
		if score < 0 || score > maxModelScore {
			return nil, fmt.Errorf("%w: score %.2f outside [0, 10]", ErrMalformedRanking, score)
		}
		seen[idx] = true
		out[idx] = judgement{score: score / maxModelScore, reason: strings.TrimSpace(item.Reason)}
	}
	return out, nil
}
