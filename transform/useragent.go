package transform

import "strings"

// Category is a coarse browser family derived from a user-agent string.
type Category string

const (
	CategoryOpera   Category = "OPERA"
	CategoryChrome  Category = "CHROME"
	CategorySafari  Category = "SAFARI"
	CategoryFirefox Category = "FIREFOX"
	CategoryIE      Category = "IE"
	CategoryOther   Category = "OTHER"
)

// Categories lists every category in classification priority order.
var Categories = []Category{
	CategoryOpera, CategoryChrome, CategorySafari, CategoryFirefox, CategoryIE, CategoryOther,
}

func (c Category) String() string {
	return string(c)
}

// first match wins; Chrome strings also carry "Safari" and Opera strings carry "Chrome"
var userAgentMarkers = []struct {
	marker   string
	category Category
}{
	{"OPR", CategoryOpera},
	{"Chrome", CategoryChrome},
	{"Safari", CategorySafari},
	{"Firefox", CategoryFirefox},
	{"Trident", CategoryIE},
}

// CategorizeUserAgent classifies ua by substring in fixed priority order.
// Every input maps to exactly one category.
func CategorizeUserAgent(ua string) Category {
	for _, m := range userAgentMarkers {
		if strings.Contains(ua, m.marker) {
			return m.category
		}
	}
	return CategoryOther
}
