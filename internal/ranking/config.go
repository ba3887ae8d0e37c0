package ranking

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
)

// Weights defines how the rule-based sub-scores combine into a relevance score.
type Weights struct {
	PromptMatch   float64 `json:"prompt_match"`   // Weight for activity text match (default: 0.5)
	InterestMatch float64 `json:"interest_match"` // Weight for profile interest match (default: 0.25)
	TimeRelevance float64 `json:"time_relevance"` // Weight for how soon the event starts (default: 0.15)
	Completeness  float64 `json:"completeness"`   // Weight for record quality (default: 0.1)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configuration
}

// DefaultWeights returns the default ranking weight configuration.
//
// Formula: score = (prompt * 0.5) + (interest * 0.25) + (time * 0.15) + (completeness * 0.1)
// - What the user asked for dominates
// - Inferred interests personalize the order
// - Sooner events and richer records break near-ties
// - Max score: 1.0
func DefaultWeights() *Weights {
	return &Weights{
		PromptMatch:   0.5,
		InterestMatch: 0.25,
		TimeRelevance: 0.15,
		Completeness:  0.1,
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// If the file doesn't exist or can't be parsed, returns default weights with an error.
// Partial configurations are merged with defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero values from the override are applied.
// Returns a new Weights struct with merged values.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}

	result := *base
	if override == nil {
		return &result
	}

	if override.PromptMatch != 0 {
		result.PromptMatch = override.PromptMatch
	}
	if override.InterestMatch != 0 {
		result.InterestMatch = override.InterestMatch
	}
	if override.TimeRelevance != 0 {
		result.TimeRelevance = override.TimeRelevance
	}
	if override.Completeness != 0 {
		result.Completeness = override.Completeness
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.PromptMatch != defaults.PromptMatch {
		overrides = append(overrides, fmt.Sprintf("prompt_match: %.2f -> %.2f",
			defaults.PromptMatch, loaded.PromptMatch))
	}
	if loaded.InterestMatch != defaults.InterestMatch {
		overrides = append(overrides, fmt.Sprintf("interest_match: %.2f -> %.2f",
			defaults.InterestMatch, loaded.InterestMatch))
	}
	if loaded.TimeRelevance != defaults.TimeRelevance {
		overrides = append(overrides, fmt.Sprintf("time_relevance: %.2f -> %.2f",
			defaults.TimeRelevance, loaded.TimeRelevance))
	}
	if loaded.Completeness != defaults.Completeness {
		overrides = append(overrides, fmt.Sprintf("completeness: %.2f -> %.2f",
			defaults.Completeness, loaded.Completeness))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
