package ranking

import (
	"fmt"
	"strings"

	"github.com/onnwee/whatnow/internal/event"
)

const (
	defaultReason = "Recommended based on your location and general interests"
	neutralReason = "Found near your location"
)

// Reason describes the dominant factors of a score in plain language.
func Reason(factors map[string]float64, activity string) string {
	activity = strings.TrimSpace(activity)
	var reasons []string

	prompt := factors[event.FactorPromptMatch]
	switch {
	case activity == "":
	case prompt > 0.7:
		reasons = append(reasons, fmt.Sprintf("closely matches your request for %q", activity))
	case prompt > 0.4:
		reasons = append(reasons, fmt.Sprintf("relates to your request for %q", activity))
	}

	switch interest := factors[event.FactorInterestMatch]; {
	case interest > 0.7:
		reasons = append(reasons, "aligns with your profile interests")
	case interest > 0.4:
		reasons = append(reasons, "matches some of your interests")
	}

	if factors[event.FactorTimeRelevance] > 0.8 {
		reasons = append(reasons, "is happening soon")
	}
	if factors[event.FactorCompleteness] > 0.8 {
		reasons = append(reasons, "has detailed information available")
	}

	if len(reasons) == 0 {
		return defaultReason
	}
	return "Recommended because it " + strings.Join(reasons, " and ")
}
