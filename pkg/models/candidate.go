package models

// RawCandidate is what one extraction strategy pulled out of a page,
// before any normalization. Any field may be empty.
type RawCandidate struct {
	Strategy    string // "jsonld", "microdata", "heuristic", "csv"
	Title       string
	Image       string
	URL         string
	Ingredients []string
	Steps       []string
	Time        string // ISO-8601 duration or raw text
	Servings    string // raw yield text
	Video       string // URL or bare video id
	Tags        []string
}

// Empty reports whether the strategy produced nothing usable at all.
func (c RawCandidate) Empty() bool {
	return c.Title == "" && len(c.Ingredients) == 0 && len(c.Steps) == 0
}

// PageMeta holds page-level fallbacks (Open Graph tags and similar).
type PageMeta struct {
	Title string
	URL   string
	Image string
	Video string
}
