package profile

import (
	"sort"
	"strings"
)

// Interest is one inferred interest category with supporting evidence.
type Interest struct {
	Category   string   `json:"category"`
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
	Evidence   string   `json:"evidence,omitempty"`
	Context    string   `json:"context,omitempty"`
	Frequency  int      `json:"frequency"`
}

// Weight orders interests: confidence times how often the interest was seen.
func (i Interest) Weight() float64 {
	f := i.Frequency
	if f < 1 {
		f = 1
	}
	return i.Confidence * float64(f)
}

// ActivityContext describes the intent behind an activity request.
type ActivityContext struct {
	Intent           string `json:"intent,omitempty"`
	Urgency          string `json:"urgency,omitempty"`
	SocialSetting    string `json:"social_setting,omitempty"`
	BudgetPreference string `json:"budget_preference,omitempty"`
}

// Demographics holds coarse hints inferred from the request text.
type Demographics struct {
	AgeGroup  string `json:"age_group,omitempty"`
	Lifestyle string `json:"lifestyle,omitempty"`
}

// Preferences summarizes the profile for ranking and display.
type Preferences struct {
	PreferredCategories []string `json:"preferred_categories,omitempty"`
	PreferredTime       string   `json:"preferred_time,omitempty"`
	SocialPreference    string   `json:"social_preference,omitempty"`
	ActivityStyle       string   `json:"activity_style,omitempty"`
	BudgetPreference    string   `json:"budget_preference,omitempty"`
}

// Profile is the personalization profile built for one request.
// Once built it is treated as read-only.
type Profile struct {
	Interests          []Interest         `json:"interests"`
	BehavioralPatterns map[string]float64 `json:"behavioral_patterns,omitempty"`
	TimePreferences    map[string]float64 `json:"time_preferences,omitempty"`
	ActivityContext    ActivityContext    `json:"activity_context"`
	Demographics       Demographics       `json:"demographics"`
	Preferences        Preferences        `json:"preferences"`
	Completion         float64            `json:"completion"`
}

// AddInterest merges in into p. An existing interest with the same category
// and source gains the union of keywords, the higher confidence and one more
// occurrence. Otherwise in is appended.
func (p *Profile) AddInterest(in Interest) {
	if in.Frequency < 1 {
		in.Frequency = 1
	}
	for idx := range p.Interests {
		existing := &p.Interests[idx]
		if existing.Category != in.Category || existing.Source != in.Source {
			continue
		}
		existing.Keywords = unionStrings(existing.Keywords, in.Keywords)
		if in.Confidence > existing.Confidence {
			existing.Confidence = in.Confidence
		}
		existing.Frequency++
		if existing.Evidence == "" {
			existing.Evidence = in.Evidence
		}
		return
	}
	in.Keywords = append([]string(nil), in.Keywords...)
	p.Interests = append(p.Interests, in)
}

// TopInterests returns up to n interests ordered by Weight, highest first.
// Equal weights keep insertion order.
func (p Profile) TopInterests(n int) []Interest {
	sorted := append([]Interest(nil), p.Interests...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight() > sorted[j].Weight()
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Trait returns a behavioral trait intensity, or 0 when absent.
func (p Profile) Trait(name string) float64 {
	return p.BehavioralPatterns[name]
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	out := p
	out.Interests = make([]Interest, len(p.Interests))
	for i, in := range p.Interests {
		in.Keywords = append([]string(nil), in.Keywords...)
		out.Interests[i] = in
	}
	out.BehavioralPatterns = copyScores(p.BehavioralPatterns)
	out.TimePreferences = copyScores(p.TimePreferences)
	out.Preferences.PreferredCategories = append([]string(nil), p.Preferences.PreferredCategories...)
	return out
}

func copyScores(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		key := strings.ToLower(s)
		if !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}
