package provider

import "sort"

// Interest category to Ticketmaster classification names.
var ticketmasterCategories = map[string][]string{
	"music":         {"music"},
	"concert":       {"music"},
	"sports":        {"sports"},
	"arts":          {"arts & theatre"},
	"art":           {"arts & theatre"},
	"theatre":       {"arts & theatre"},
	"theater":       {"arts & theatre"},
	"comedy":        {"comedy"},
	"technology":    {"miscellaneous"},
	"food":          {"miscellaneous"},
	"fitness":       {"sports", "miscellaneous"},
	"learning":      {"miscellaneous"},
	"entertainment": {"miscellaneous", "film"},
	"film":          {"film"},
	"movie":         {"film"},
	"family":        {"family"},
	"culture":       {"arts & theatre", "miscellaneous"},
}

var ticketmasterFallback = []string{"music", "sports", "arts & theatre", "miscellaneous"}

// Interest category to AllEvents category slugs.
var alleventsCategories = map[string][]string{
	"music":         {"music", "concerts", "festivals"},
	"concert":       {"music", "concerts"},
	"festival":      {"festivals", "music", "food"},
	"nightlife":     {"nightlife", "parties"},
	"comedy":        {"comedy", "entertainment"},
	"theatre":       {"theatre", "performing-arts"},
	"entertainment": {"entertainment", "performing-arts"},
	"sports":        {"sports", "fitness"},
	"fitness":       {"fitness", "sports", "health"},
	"running":       {"sports", "fitness", "running"},
	"yoga":          {"fitness", "health", "wellness"},
	"arts":          {"art", "exhibitions", "culture"},
	"art":           {"art", "exhibitions", "culture"},
	"museum":        {"art", "culture", "exhibitions"},
	"culture":       {"culture", "art", "history"},
	"history":       {"culture", "history", "education"},
	"food":          {"food", "restaurants", "culinary"},
	"cooking":       {"food", "culinary", "workshops"},
	"wine":          {"food", "wine", "culinary"},
	"beer":          {"food", "beer", "nightlife"},
	"technology":    {"technology", "business", "conferences"},
	"tech":          {"technology", "business"},
	"business":      {"business", "networking", "conferences"},
	"networking":    {"business", "networking", "professional"},
	"nature":        {"nature", "outdoor", "environment"},
	"outdoor":       {"outdoor", "nature", "adventure"},
	"hiking":        {"outdoor", "nature", "sports"},
	"adventure":     {"adventure", "outdoor", "sports"},
	"travel":        {"travel", "adventure", "outdoor"},
	"family":        {"family", "kids", "children"},
	"kids":          {"kids", "family", "children"},
	"education":     {"education", "workshops", "learning"},
	"workshop":      {"workshops", "education", "learning"},
	"learning":      {"education", "workshops", "personal-development"},
	"wellness":      {"wellness", "health", "mindfulness"},
	"meditation":    {"wellness", "mindfulness", "health"},
	"community":     {"community", "social", "networking"},
	"volunteer":     {"community", "charity", "social"},
}

// Interest category to Eventbrite category IDs.
var eventbriteCategories = map[string][]string{
	"business":      {"101"},
	"networking":    {"101"},
	"technology":    {"102"},
	"tech":          {"102"},
	"science":       {"102"},
	"music":         {"103"},
	"concert":       {"103"},
	"film":          {"104"},
	"entertainment": {"104", "105"},
	"arts":          {"105"},
	"art":           {"105"},
	"theatre":       {"105"},
	"comedy":        {"105"},
	"wellness":      {"107"},
	"yoga":          {"107", "108"},
	"sports":        {"108"},
	"fitness":       {"108"},
	"travel":        {"109"},
	"nature":        {"109"},
	"outdoor":       {"109"},
	"hiking":        {"109"},
	"food":          {"110"},
	"wine":          {"110"},
	"community":     {"113"},
	"family":        {"115"},
	"education":     {"115"},
	"learning":      {"115"},
	"workshop":      {"115"},
}

var (
	ticketmasterOrder = sortedKeys(ticketmasterCategories)
	alleventsOrder    = sortedKeys(alleventsCategories)
	eventbriteOrder   = sortedKeys(eventbriteCategories)
)

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
