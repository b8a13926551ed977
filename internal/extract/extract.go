// Package extract pulls raw recipe candidates out of HTML pages using an
// ordered cascade of strategies: structured data, microdata, then DOM heuristics.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// Strategy names reported in candidates and metrics.
const (
	StrategyJSONLD    = "jsonld"
	StrategyMicrodata = "microdata"
	StrategyHeuristic = "heuristic"
)

// Page is a parsed HTML document plus the URL it was fetched from.
type Page struct {
	URL string
	Doc *goquery.Document
}

// ParsePage parses raw HTML once so every strategy can share the tree.
func ParsePage(pageURL string, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{URL: pageURL, Doc: doc}, nil
}

// Extractor is one extraction strategy. It returns zero or more candidates
// and never fails: anything it cannot read is simply not a candidate.
type Extractor interface {
	Name() string
	Extract(p *Page) []models.RawCandidate
}

// Result is the outcome of a cascade run.
type Result struct {
	Strategy   string
	Candidates []models.RawCandidate
}

// Cascade tries its extractors in order and stops at the first one that
// yields candidates. Partial results are never merged across strategies.
type Cascade struct {
	Extractors []Extractor
}

// NewCascade returns the standard structured data -> microdata -> heuristic chain.
func NewCascade(vocab Vocabulary) *Cascade {
	return &Cascade{Extractors: []Extractor{
		JSONLD{},
		Microdata{},
		NewHeuristic(vocab),
	}}
}

// Run returns the first non-empty result, or a zero Result when every
// strategy came back empty.
func (c *Cascade) Run(p *Page) Result {
	for _, e := range c.Extractors {
		cands := e.Extract(p)
		if len(cands) == 0 {
			continue
		}
		for i := range cands {
			cands[i].Strategy = e.Name()
		}
		return Result{Strategy: e.Name(), Candidates: cands}
	}
	return Result{}
}

// PageMetaFrom reads the Open Graph fallbacks used by the normalizer.
func PageMetaFrom(doc *goquery.Document) models.PageMeta {
	return models.PageMeta{
		Title: meta(doc, "og:title"),
		URL:   meta(doc, "og:url"),
		Image: firstNonEmpty(meta(doc, "og:image"), meta(doc, "og:image:secure_url")),
		Video: firstNonEmpty(meta(doc, "og:video:secure_url"), meta(doc, "og:video:url"), meta(doc, "og:video")),
	}
}

// meta looks a key up as both property= and name= since sites mix them.
func meta(doc *goquery.Document, key string) string {
	if v, ok := doc.Find(fmt.Sprintf(`meta[property=%q]`, key)).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return normalize.CleanText(v)
	}
	if v, ok := doc.Find(fmt.Sprintf(`meta[name=%q]`, key)).First().Attr("content"); ok {
		return normalize.CleanText(v)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
