package profile

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/onnwee/whatnow/internal/event"
)

// Interest sources used when building a profile.
const (
	SourceUserInput = "user_input"
	ContextActivity = "primary_activity"
)

// Trait intensity above which a trait shapes the derived preferences.
const preferenceTraitThreshold = 0.3

// Engagement boosts applied per matched phrase.
const (
	highEngagementBoost   = 0.3
	mediumEngagementBoost = 0.2
	frequencyBoost        = 0.15
	sentimentScale        = 0.1
	categoryTermBoost     = 0.1
)

var (
	temporalTerms = []string{"since", "for", "years", "months", "recently", "started"}
	skillTerms    = []string{"beginner", "intermediate", "advanced", "professional", "expert"}

	youngAdultTerms = []string{"college", "university", "student", "party", "club", "gaming"}
	middleAgeTerms  = []string{"family", "career", "professional", "mortgage", "kids"}
	seniorTerms     = []string{"retirement", "grandchildren", "volunteer", "garden"}
)

// Extractor derives interests and behavioral traits from free text using a
// shared Taxonomy. It holds no per-request state and is safe for concurrent use.
type Extractor struct {
	tax    *Taxonomy
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil taxonomy uses DefaultTaxonomy.
func NewExtractor(tax *Taxonomy, logger *slog.Logger) *Extractor {
	if tax == nil {
		tax = DefaultTaxonomy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{tax: tax, logger: logger}
}

// Taxonomy returns the taxonomy the extractor matches against.
func (x *Extractor) Taxonomy() *Taxonomy {
	return x.tax
}

// Extract returns the interests found in text, in taxonomy category order.
// Interests scoring below the taxonomy's minimum confidence are discarded.
func (x *Extractor) Extract(text, source, context string) []Interest {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	norm := NewText(text)
	engagement := x.engagementBoost(norm)

	var interests []Interest
	for _, name := range x.tax.CategoryNames() {
		cat := x.tax.Categories[name]
		matches := norm.Matches(cat.Keywords)
		if len(matches) == 0 {
			continue
		}

		confidence := float64(len(matches))/float64(len(cat.Keywords)) + engagement
		confidence += categoryTermBoost * float64(norm.Count(cat.Venues)+norm.Count(cat.Indicators)+norm.Count(cat.SentimentBoost))
		confidence = event.Clamp01(confidence)
		if confidence < x.tax.MinConfidence {
			continue
		}

		interests = append(interests, Interest{
			Category:   name,
			Keywords:   matches,
			Confidence: confidence,
			Source:     source,
			Evidence:   evidence(text, matches),
			Context:    joinContext(context, interestContext(norm)),
			Frequency:  1,
		})
	}

	x.logger.Debug("interests extracted",
		"source", source,
		"count", len(interests),
	)
	return interests
}

// engagementBoost scores engagement phrasing and sentiment words. It does not
// depend on the category, so it is computed once per text.
func (x *Extractor) engagementBoost(norm Text) float64 {
	boost := highEngagementBoost*float64(norm.Count(x.tax.Engagement.High)) +
		mediumEngagementBoost*float64(norm.Count(x.tax.Engagement.Medium)) +
		frequencyBoost*float64(norm.Count(x.tax.Engagement.Frequency))
	for word, weight := range x.tax.Sentiment {
		if norm.Has(word) {
			boost += weight * sentimentScale
		}
	}
	return boost
}

// Behavior scores every trait and time preference as the fraction of its
// terms found in text. Traits are independent of each other.
func (x *Extractor) Behavior(text string) (traits, times map[string]float64) {
	norm := NewText(text)
	traits = make(map[string]float64, len(x.tax.Traits))
	for name, terms := range x.tax.Traits {
		traits[name] = fraction(norm, terms)
	}
	times = make(map[string]float64, len(x.tax.TimePreferences))
	for name, terms := range x.tax.TimePreferences {
		times[name] = fraction(norm, terms)
	}
	return traits, times
}

func fraction(norm Text, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	return float64(norm.Count(terms)) / float64(len(terms))
}

// evidence returns up to two sentences that mention a matched keyword.
func evidence(text string, matches []string) string {
	var picked []string
	for _, s := range Sentences(text) {
		if len(NewText(s).Matches(matches)) > 0 {
			picked = append(picked, s)
			if len(picked) == 2 {
				break
			}
		}
	}
	return strings.Join(picked, " ")
}

func interestContext(norm Text) string {
	var parts []string
	for _, term := range norm.Matches(temporalTerms) {
		parts = append(parts, "temporal:"+term)
	}
	for _, term := range norm.Matches(skillTerms) {
		parts = append(parts, "skill:"+term)
	}
	return strings.Join(parts, ", ")
}

func joinContext(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " | " + b
	}
}

// AnalyzeActivity derives intent, urgency, social setting and budget from the
// activity text. Empty text yields an empty context.
func AnalyzeActivity(activity string) ActivityContext {
	if strings.TrimSpace(activity) == "" {
		return ActivityContext{}
	}
	norm := NewText(activity)
	var ac ActivityContext

	switch {
	case norm.HasAny("want", "need", "looking for", "search"):
		ac.Intent = "seeking"
	case norm.HasAny("love", "enjoy", "passion"):
		ac.Intent = "pursuing_interest"
	case norm.HasAny("learn", "try", "new"):
		ac.Intent = "exploring"
	}

	switch {
	case norm.HasAny("tonight", "today", "now", "immediate"):
		ac.Urgency = "high"
	case norm.HasAny("weekend", "soon", "this week"):
		ac.Urgency = "medium"
	default:
		ac.Urgency = "low"
	}

	switch {
	case norm.HasAny("with friends", "group", "family", "date"):
		ac.SocialSetting = "group"
	case norm.HasAny("alone", "solo", "myself"):
		ac.SocialSetting = "solo"
	default:
		ac.SocialSetting = "flexible"
	}

	switch {
	case norm.HasAny("free", "cheap", "budget", "affordable"):
		ac.BudgetPreference = "low"
	case norm.HasAny("premium", "high-end", "luxury", "expensive"):
		ac.BudgetPreference = "high"
	default:
		ac.BudgetPreference = "medium"
	}
	return ac
}

// Input is the raw material for one profile.
type Input struct {
	Name     string
	City     string
	Activity string
	// Auxiliary maps a source name such as "bio" to free text from it.
	Auxiliary map[string]string
	// Existing is a previously built profile to merge into. It is not modified.
	Existing *Profile
}

// Build creates the personalization profile for one request. Interests from
// an existing profile are merged with newly extracted ones by category and
// source.
func (x *Extractor) Build(in Input) Profile {
	var p Profile
	if in.Existing != nil {
		p = in.Existing.Clone()
	}

	for _, interest := range x.Extract(in.Activity, SourceUserInput, ContextActivity) {
		p.AddInterest(interest)
	}

	sources := make([]string, 0, len(in.Auxiliary))
	for source := range in.Auxiliary {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	texts := []string{in.Activity}
	auxCount := 0
	for _, source := range sources {
		text := in.Auxiliary[source]
		if strings.TrimSpace(text) == "" {
			continue
		}
		auxCount++
		texts = append(texts, text)
		for _, interest := range x.Extract(text, source, source) {
			p.AddInterest(interest)
		}
	}

	traits, times := x.Behavior(strings.Join(texts, " "))
	p.BehavioralPatterns = maxScores(p.BehavioralPatterns, traits)
	p.TimePreferences = maxScores(p.TimePreferences, times)
	p.ActivityContext = AnalyzeActivity(in.Activity)
	p.Demographics = inferDemographics(in.Activity, p.Interests)
	p.Preferences = derivePreferences(p)
	p.Completion = completion(in, auxCount, p)

	x.logger.Debug("profile built",
		"interests", len(p.Interests),
		"completion", p.Completion,
	)
	return p
}

func maxScores(base, next map[string]float64) map[string]float64 {
	out := copyScores(base)
	if out == nil {
		out = make(map[string]float64, len(next))
	}
	for k, v := range next {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

func inferDemographics(activity string, interests []Interest) Demographics {
	parts := []string{activity}
	for _, in := range interests {
		parts = append(parts, in.Evidence)
	}
	norm := NewText(strings.Join(parts, " "))

	var d Demographics
	young := norm.Count(youngAdultTerms)
	middle := norm.Count(middleAgeTerms)
	senior := norm.Count(seniorTerms)
	switch {
	case young > middle && young > senior:
		d.AgeGroup = "young_adult"
	case middle > senior:
		d.AgeGroup = "middle_age"
	case senior > 0:
		d.AgeGroup = "senior"
	}

	has := func(cats ...string) bool {
		for _, in := range interests {
			for _, c := range cats {
				if in.Category == c {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("sports", "nature"):
		d.Lifestyle = "active"
	case has("arts", "music", "technology", "comedy"):
		d.Lifestyle = "creative"
	case has("food", "travel"):
		d.Lifestyle = "experiential"
	}
	return d
}

func derivePreferences(p Profile) Preferences {
	var prefs Preferences
	for _, in := range p.TopInterests(5) {
		prefs.PreferredCategories = append(prefs.PreferredCategories, in.Category)
	}

	// Highest-scoring time slot, ties broken by name for stable output.
	best := 0.0
	for _, slot := range sortedKeys(p.TimePreferences) {
		if score := p.TimePreferences[slot]; score > best {
			best = score
			prefs.PreferredTime = slot
		}
	}

	switch {
	case p.Trait(TraitSocial) > preferenceTraitThreshold:
		prefs.SocialPreference = "group"
	case p.Trait(TraitSolo) > preferenceTraitThreshold:
		prefs.SocialPreference = "solo"
	default:
		prefs.SocialPreference = "flexible"
	}

	switch {
	case p.Trait(TraitAdventure) > preferenceTraitThreshold:
		prefs.ActivityStyle = "adventurous"
	case p.Trait(TraitLearning) > preferenceTraitThreshold:
		prefs.ActivityStyle = "educational"
	case p.Trait(TraitCreative) > preferenceTraitThreshold:
		prefs.ActivityStyle = "creative"
	default:
		prefs.ActivityStyle = "balanced"
	}

	prefs.BudgetPreference = p.ActivityContext.BudgetPreference
	if prefs.BudgetPreference == "" {
		prefs.BudgetPreference = "medium"
	}
	return prefs
}

// completion is a 0-100 percentage of how much the profile knows.
func completion(in Input, auxCount int, p Profile) float64 {
	score := 0.0
	if in.Name != "" {
		score += 5
	}
	if in.City != "" {
		score += 5
	}
	if strings.TrimSpace(in.Activity) != "" {
		score += 10
	}
	score += min(float64(auxCount*3), 20)
	score += min(float64(len(p.Interests)*3), 30)
	// Preferences are always derived.
	score += 15
	for _, v := range p.BehavioralPatterns {
		if v > 0 {
			score += 15
			break
		}
	}
	return min(score, 100)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
