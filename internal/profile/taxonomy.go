package profile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// TaxonomyVersion identifies the compiled-in taxonomy.
const TaxonomyVersion = "2026.10"

// DefaultMinConfidence is the lowest confidence an extracted interest may have.
const DefaultMinConfidence = 0.2

// Behavioral trait names.
const (
	TraitSocial    = "social_preference"
	TraitSolo      = "solo_preference"
	TraitAdventure = "adventure_seeking"
	TraitComfort   = "comfort_zone"
	TraitCreative  = "creative_expression"
	TraitLearning  = "learning_oriented"
	TraitHealth    = "health_conscious"
)

// Taxonomy errors.
var (
	ErrEmptyTaxonomy     = errors.New("taxonomy has no categories")
	ErrEmptyCategory     = errors.New("taxonomy category has no keywords")
	ErrInvalidConfidence = errors.New("min confidence must be between 0 and 1")
)

// Category lists the terms that signal interest in one category.
type Category struct {
	Keywords       []string `koanf:"keywords"`
	Indicators     []string `koanf:"indicators"`
	Venues         []string `koanf:"venues"`
	SentimentBoost []string `koanf:"sentiment_boost"`
}

// Engagement lists phrases that show how deeply a user engages with a topic.
type Engagement struct {
	High      []string `koanf:"high"`
	Medium    []string `koanf:"medium"`
	Low       []string `koanf:"low"`
	Frequency []string `koanf:"frequency"`
}

// Taxonomy is the shared vocabulary used by the extractor and the ranker.
// It is read-only after construction and safe for concurrent reads.
type Taxonomy struct {
	Version         string              `koanf:"version"`
	MinConfidence   float64             `koanf:"min_confidence"`
	Categories      map[string]Category `koanf:"categories"`
	Engagement      Engagement          `koanf:"engagement"`
	Sentiment       map[string]float64  `koanf:"sentiment"`
	Traits          map[string][]string `koanf:"traits"`
	TimePreferences map[string][]string `koanf:"time_preferences"`

	names []string
}

// DefaultTaxonomy returns the compiled-in taxonomy.
func DefaultTaxonomy() *Taxonomy {
	t := &Taxonomy{
		Version:       TaxonomyVersion,
		MinConfidence: DefaultMinConfidence,
		Categories: map[string]Category{
			"music": {
				Keywords: []string{
					"music", "concert", "festival", "band", "artist", "album", "song",
					"guitar", "piano", "drums", "violin", "jazz", "rock", "pop", "classical",
					"hip-hop", "rap", "electronic", "edm", "country", "blues", "reggae",
					"spotify", "soundcloud", "vinyl", "live music", "symphony", "opera",
				},
				Indicators:     []string{"plays", "listens", "performs", "composes", "produces"},
				Venues:         []string{"concert hall", "club", "stadium", "amphitheater", "bar"},
				SentimentBoost: []string{"passion", "obsessed", "favorite", "amazing"},
			},
			"sports": {
				Keywords: []string{
					"sports", "football", "basketball", "baseball", "soccer", "tennis",
					"golf", "hockey", "swimming", "running", "cycling", "fitness", "gym",
					"marathon", "triathlon", "yoga", "pilates", "crossfit", "weightlifting",
					"volleyball", "softball", "wrestling", "boxing", "mma", "skiing",
				},
				Indicators:     []string{"plays", "trains", "competes", "coaches", "watches"},
				Venues:         []string{"stadium", "gym", "court", "field", "track", "pool"},
				SentimentBoost: []string{"competitive", "athletic", "active", "champion"},
			},
			"arts": {
				Keywords: []string{
					"art", "painting", "drawing", "sculpture", "photography", "gallery",
					"museum", "exhibition", "artist", "creative", "design", "theater",
					"theatre", "drama", "acting", "dance", "ballet", "contemporary", "crafts",
					"pottery", "jewelry", "fashion", "illustration", "digital art",
				},
				Indicators:     []string{"creates", "exhibits", "performs", "designs", "collects"},
				Venues:         []string{"gallery", "museum", "theater", "studio", "workshop"},
				SentimentBoost: []string{"creative", "artistic", "expressive", "inspiring"},
			},
			"comedy": {
				Keywords: []string{
					"comedy", "comedian", "stand-up", "standup", "improv", "sketch",
					"open mic", "roast", "funny", "laugh", "humor", "satire",
				},
				Indicators:     []string{"performs", "writes", "watches"},
				Venues:         []string{"comedy club", "club", "theater", "bar"},
				SentimentBoost: []string{"hilarious", "funny", "favorite"},
			},
			"technology": {
				Keywords: []string{
					"technology", "programming", "coding", "software", "developer",
					"engineer", "computer", "ai", "machine learning", "data science",
					"startup", "app", "website", "github", "python", "javascript",
					"blockchain", "crypto", "iot", "robotics", "vr", "ar", "gaming",
				},
				Indicators:     []string{"develops", "codes", "builds", "programs", "hacks"},
				Venues:         []string{"hackathon", "conference", "meetup", "coworking", "lab"},
				SentimentBoost: []string{"innovative", "cutting-edge", "passionate", "expert"},
			},
			"food": {
				Keywords: []string{
					"food", "cooking", "baking", "cuisine", "restaurant", "chef",
					"recipe", "culinary", "dining", "foodie", "wine", "beer", "coffee",
					"tea", "organic", "vegan", "vegetarian", "nutrition", "gourmet",
					"street food", "fine dining", "barbecue", "dessert", "cocktails",
				},
				Indicators:     []string{"cooks", "bakes", "tastes", "reviews", "explores"},
				Venues:         []string{"restaurant", "kitchen", "market", "festival", "tasting"},
				SentimentBoost: []string{"delicious", "gourmet", "passionate", "expert"},
			},
			"travel": {
				Keywords: []string{
					"travel", "tourism", "vacation", "trip", "adventure", "backpacking",
					"hotel", "flight", "destination", "explore", "culture", "sightseeing",
					"beach", "mountain", "city", "country", "international", "domestic",
					"cruise", "road trip", "camping", "hiking", "photography",
				},
				Indicators:     []string{"visits", "explores", "travels", "photographs", "blogs"},
				Venues:         []string{"destinations", "hotels", "airports", "attractions", "tours"},
				SentimentBoost: []string{"wanderlust", "adventure", "explorer", "globe-trotter"},
			},
			"nature": {
				Keywords: []string{
					"nature", "outdoor", "hiking", "camping", "wildlife", "conservation",
					"environment", "ecology", "sustainability", "gardening", "plants",
					"animals", "birds", "forest", "mountains", "ocean", "rivers",
					"national parks", "trails", "fishing", "hunting", "photography",
				},
				Indicators:     []string{"hikes", "camps", "explores", "photographs", "conserves"},
				Venues:         []string{"parks", "trails", "forests", "lakes", "mountains"},
				SentimentBoost: []string{"eco-friendly", "naturalist", "outdoorsy", "green"},
			},
		},
		Engagement: Engagement{
			High: []string{
				"passionate about", "obsessed with", "love", "dedicated to",
				"professional", "expert", "years of experience", "certified",
				"compete", "perform", "teach", "mentor", "lead",
			},
			Medium: []string{
				"enjoy", "like", "interested in", "hobby", "amateur",
				"learning", "practicing", "member", "participant",
			},
			Low: []string{
				"sometimes", "occasionally", "beginner", "trying",
				"curious about", "thinking about", "might",
			},
			Frequency: []string{
				"daily", "weekly", "monthly", "regularly", "often",
				"frequently", "always", "constantly", "every day",
			},
		},
		Sentiment: map[string]float64{
			"love": 0.9, "passion": 0.9, "obsessed": 0.8, "amazing": 0.7,
			"fantastic": 0.7, "excellent": 0.6, "great": 0.5, "good": 0.4,
			"like": 0.3, "okay": 0.2, "hate": -0.8, "terrible": -0.7,
			"awful": -0.6, "bad": -0.5, "dislike": -0.4,
		},
		Traits: map[string][]string{
			TraitSocial: {
				"group", "class", "workshop", "meetup", "club", "team",
				"community", "together", "friends", "social",
			},
			TraitSolo: {
				"alone", "individual", "personal", "solo", "private",
				"meditation", "reading", "writing", "reflection",
			},
			TraitAdventure: {
				"adventure", "extreme", "adrenaline", "challenge", "risk",
				"new", "explore", "discover", "unknown", "exciting",
			},
			TraitComfort: {
				"familiar", "routine", "regular", "same", "usual",
				"comfortable", "safe", "known", "predictable",
			},
			TraitCreative: {
				"create", "make", "build", "design", "artistic",
				"original", "unique", "innovative", "express",
			},
			TraitLearning: {
				"learn", "study", "education", "knowledge", "skill",
				"improve", "develop", "grow", "understand", "research",
			},
			TraitHealth: {
				"healthy", "wellness", "fitness", "nutrition", "organic",
				"exercise", "mindful", "balance", "wellbeing",
			},
		},
		TimePreferences: map[string][]string{
			"morning": {"morning", "early", "dawn", "sunrise", "am"},
			"evening": {"evening", "night", "tonight", "sunset", "pm", "late"},
			"weekend": {"weekend", "saturday", "sunday", "days off"},
			"weekday": {"weekday", "workday", "monday", "friday"},
		},
	}
	t.index()
	return t
}

// LoadTaxonomy reads a taxonomy from a YAML file. Sections missing from the
// file keep their compiled-in defaults.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load taxonomy %s: %w", path, err)
	}

	var loaded Taxonomy
	if err := k.UnmarshalWithConf("", &loaded, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy %s: %w", path, err)
	}

	t := DefaultTaxonomy()
	if loaded.Version != "" {
		t.Version = loaded.Version
	}
	if k.Exists("min_confidence") {
		t.MinConfidence = loaded.MinConfidence
	}
	if len(loaded.Categories) > 0 {
		t.Categories = loaded.Categories
	}
	if k.Exists("engagement") {
		t.Engagement = loaded.Engagement
	}
	if len(loaded.Sentiment) > 0 {
		t.Sentiment = loaded.Sentiment
	}
	if len(loaded.Traits) > 0 {
		t.Traits = loaded.Traits
	}
	if len(loaded.TimePreferences) > 0 {
		t.TimePreferences = loaded.TimePreferences
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.index()
	return t, nil
}

// Validate checks that the taxonomy can drive extraction.
func (t *Taxonomy) Validate() error {
	if len(t.Categories) == 0 {
		return ErrEmptyTaxonomy
	}
	for name, c := range t.Categories {
		if len(c.Keywords) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyCategory, name)
		}
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}

// CategoryNames returns the category names in sorted order.
func (t *Taxonomy) CategoryNames() []string {
	if t.names != nil {
		return t.names
	}
	names := make([]string, 0, len(t.Categories))
	for name := range t.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keywords returns the keywords of category, or nil when it is unknown.
func (t *Taxonomy) Keywords(category string) []string {
	return t.Categories[category].Keywords
}

func (t *Taxonomy) index() {
	t.names = nil
	t.names = t.CategoryNames()
}

// Classify returns the categories with at least one keyword in text, in
// name order.
func (t *Taxonomy) Classify(text string) []string {
	norm := NewText(text)
	var out []string
	for _, name := range t.CategoryNames() {
		for _, kw := range t.Categories[name].Keywords {
			if norm.Has(kw) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
