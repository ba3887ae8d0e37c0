package ranking

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/profile"
)

const (
	// exactPhraseScore is the prompt score when the whole activity phrase
	// appears in the event text.
	exactPhraseScore = 1.0

	// minPromptWordLen skips short words such as "a" or "to" when
	// computing the fractional prompt match.
	minPromptWordLen = 3

	maxInterestsConsidered = 10
	maxKeywordsConsidered  = 5
	categoryCredit         = 0.7
	keywordCredit          = 0.3

	// behavioralBoost scales the behavioral sub-score before it is folded
	// into the interest component.
	behavioralBoost = 0.25

	// minDescriptionLen is the length a description needs to count toward quality.
	minDescriptionLen = 20
)

// Time relevance buckets.
const (
	timeUnknown  = 0.3
	timePast     = 0.1
	timeThisWeek = 1.0
	timeNextWeek = 0.8
	timeMonth    = 0.6
	timeLater    = 0.4
)

// traitSignals lists event terms that appeal to a behavioral trait.
var traitSignals = map[string][]string{
	profile.TraitAdventure: {"adventure", "outdoor", "extreme", "new", "discover", "explore"},
	profile.TraitLearning:  {"workshop", "class", "lecture", "talk", "course", "seminar"},
	profile.TraitSocial:    {"meetup", "party", "mixer", "festival", "social", "community"},
	profile.TraitCreative:  {"art", "craft", "create", "design", "studio"},
	profile.TraitHealth:    {"yoga", "run", "fitness", "wellness", "hike"},
}

// EventText returns the searchable text of an event.
func EventText(e event.Event) profile.Text {
	return profile.NewText(strings.Join([]string{
		e.Name, e.Description, e.Category, e.Subcategory, e.Venue,
	}, " "))
}

// PromptMatch scores how well the event text matches the activity request.
// The whole phrase appearing verbatim scores exactPhraseScore. Otherwise the
// score is the fraction of activity words of three or more characters that
// appear in the event text.
func PromptMatch(activity string, text profile.Text) float64 {
	words := profile.Words(activity)
	if len(words) == 0 {
		return 0
	}
	if text.Has(strings.Join(words, " ")) {
		return exactPhraseScore
	}

	var significant []string
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minPromptWordLen {
			significant = append(significant, w)
		}
	}
	if len(significant) == 0 {
		return 0
	}
	return event.Clamp01(float64(text.Count(significant)) / float64(len(significant)))
}

// InterestMatch scores the event against the profile's top interests. A
// matching category earns confidence-weighted credit and keyword overlap with
// the event text adds a smaller share. The best interest wins.
func InterestMatch(e event.Event, text profile.Text, p *profile.Profile) float64 {
	if p == nil || len(p.Interests) == 0 {
		return 0
	}
	categories := profile.NewText(e.Category + " " + e.Subcategory)

	best := 0.0
	for _, in := range p.TopInterests(maxInterestsConsidered) {
		score := 0.0
		if categories.Has(in.Category) {
			score += categoryCredit
		}
		keywords := in.Keywords
		if len(keywords) > maxKeywordsConsidered {
			keywords = keywords[:maxKeywordsConsidered]
		}
		if len(keywords) > 0 {
			score += keywordCredit * float64(text.Count(keywords)) / float64(len(keywords))
		}
		score *= in.Confidence
		if score > best {
			best = score
		}
	}
	return event.Clamp01(best)
}

// BehavioralMatch returns the intensity of the strongest profile trait the
// event appeals to.
func BehavioralMatch(text profile.Text, p *profile.Profile) float64 {
	if p == nil {
		return 0
	}
	best := 0.0
	for trait, signals := range traitSignals {
		if v := p.Trait(trait); v > best && text.HasAny(signals...) {
			best = v
		}
	}
	return event.Clamp01(best)
}

// TimeRelevance favors events starting within the next week and decays
// through two-week and month buckets. Past events score near zero and
// events without a usable date get a neutral score. Days are counted on
// the event's local calendar; without coordinates an event is only past
// once it is more than a day behind.
func TimeRelevance(e event.Event, now time.Time) float64 {
	zone, known := e.Location.ApproxZone()
	start, ok := e.Start(zone)
	if !ok {
		return timeUnknown
	}
	local := now.In(zone)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(day.Sub(today).Hours() / 24))

	pastBefore := 0
	if !known {
		pastBefore = -1
	}

	switch {
	case days < pastBefore:
		return timePast
	case days <= 7:
		return timeThisWeek
	case days <= 14:
		return timeNextWeek
	case days <= 30:
		return timeMonth
	default:
		return timeLater
	}
}

// Quality scores how presentable the record is.
func Quality(e event.Event) float64 {
	score := 0.0
	if e.ImageURL != "" {
		score += 0.3
	}
	if utf8.RuneCountInString(strings.TrimSpace(e.Description)) > minDescriptionLen {
		score += 0.3
	}
	if e.HasVenue() {
		score += 0.2
	}
	if e.HasTime() {
		score += 0.2
	}
	return event.Clamp01(score)
}

// Params holds the sub-scores for one event.
type Params struct {
	Prompt       float64 // Activity text match [0, 1]
	Interest     float64 // Profile interest match [0, 1]
	Behavioral   float64 // Behavioral trait match [0, 1]
	Time         float64 // Time relevance [0, 1]
	Completeness float64 // Record quality [0, 1]
}

// Factors returns the params as named personalization factors. The interest
// factor includes the behavioral boost.
func (p Params) Factors() map[string]float64 {
	return map[string]float64{
		event.FactorPromptMatch:     event.Clamp01(p.Prompt),
		event.FactorInterestMatch:   p.interest(),
		event.FactorBehavioralMatch: event.Clamp01(p.Behavioral),
		event.FactorTimeRelevance:   event.Clamp01(p.Time),
		event.FactorCompleteness:    event.Clamp01(p.Completeness),
	}
}

func (p Params) interest() float64 {
	return event.Clamp01(event.Clamp01(p.Interest) + behavioralBoost*event.Clamp01(p.Behavioral))
}

// CompositeScore combines the sub-scores with the calibrated weights.
// Each sub-score is capped to [0, 1] before weighting and the total is
// capped at 1.
func CompositeScore(params Params, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}

	score := (event.Clamp01(params.Prompt) * weights.PromptMatch) +
		(params.interest() * weights.InterestMatch) +
		(event.Clamp01(params.Time) * weights.TimeRelevance) +
		(event.Clamp01(params.Completeness) * weights.Completeness)

	return event.Clamp01(score)
}
