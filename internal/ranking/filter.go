package ranking

import (
	"errors"

	"github.com/onnwee/whatnow/internal/event"
)

// Filter defaults.
const (
	DefaultMinRelevance     = 0.15
	DefaultRelaxedRelevance = 0.1
	DefaultMinResults       = 5
	DefaultMaxResults       = 30
)

// Filter configuration errors.
var (
	ErrInvalidRelevance  = errors.New("relevance thresholds must be within [0, 1] and relaxed must not exceed min")
	ErrInvalidResultSize = errors.New("result counts must be positive and min must not exceed max")
)

// FilterConfig controls which ranked events reach the caller.
type FilterConfig struct {
	// MinRelevance is the inclusive score threshold.
	MinRelevance float64 `koanf:"min_relevance"`
	// RelaxedRelevance replaces MinRelevance when fewer than MinResults
	// events would survive it.
	RelaxedRelevance float64 `koanf:"relaxed_relevance"`
	MinResults       int     `koanf:"min_results"`
	MaxResults       int     `koanf:"max_results"`
}

// DefaultFilterConfig returns the default filter configuration.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinRelevance:     DefaultMinRelevance,
		RelaxedRelevance: DefaultRelaxedRelevance,
		MinResults:       DefaultMinResults,
		MaxResults:       DefaultMaxResults,
	}
}

// Validate checks the configuration.
func (c FilterConfig) Validate() error {
	if c.MinRelevance < 0 || c.MinRelevance > 1 || c.RelaxedRelevance < 0 || c.RelaxedRelevance > c.MinRelevance {
		return ErrInvalidRelevance
	}
	if c.MinResults < 0 || c.MaxResults <= 0 || c.MinResults > c.MaxResults {
		return ErrInvalidResultSize
	}
	return nil
}

// Filter drops events below the relevance threshold and truncates the rest
// to MaxResults. The threshold is inclusive. When fewer than MinResults
// events meet it, the relaxed threshold applies instead. Events are sorted
// before truncation so a high-scoring tail item is never cut in favor of a
// lower-scoring one.
func Filter(ranked []event.CanonicalEvent, cfg FilterConfig) []event.CanonicalEvent {
	sorted := append([]event.CanonicalEvent(nil), ranked...)
	sortByScore(sorted)

	kept := aboveThreshold(sorted, cfg.MinRelevance)
	if len(kept) < cfg.MinResults {
		kept = aboveThreshold(sorted, cfg.RelaxedRelevance)
	}
	if cfg.MaxResults > 0 && len(kept) > cfg.MaxResults {
		kept = kept[:cfg.MaxResults]
	}
	return kept
}

// aboveThreshold returns the prefix of sorted scoring at least threshold.
func aboveThreshold(sorted []event.CanonicalEvent, threshold float64) []event.CanonicalEvent {
	n := 0
	for n < len(sorted) && sorted[n].RelevanceScore >= threshold {
		n++
	}
	return sorted[:n]
}
