// Package normalize maps raw extraction candidates onto the canonical recipe schema.
package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"ricettario/pkg/models"
)

// ErrIncomplete marks a candidate that cannot become a corpus entry.
var ErrIncomplete = errors.New("incomplete recipe")

// Normalizer turns RawCandidates into canonical recipes.
type Normalizer struct {
	Placeholder string
	ingredients *IngredientParser
}

// New creates a Normalizer; units overrides DefaultUnits when non-empty.
func New(units []string) *Normalizer {
	return &Normalizer{
		Placeholder: models.PlaceholderImage,
		ingredients: NewIngredientParser(units),
	}
}

// Normalize applies the field rules in order of precedence: candidate value,
// then page metadata, then the fetch URL or placeholder. A result without
// title, ingredients or steps is returned together with ErrIncomplete.
func (n *Normalizer) Normalize(c models.RawCandidate, page models.PageMeta, sourceURL string) (models.Recipe, error) {
	r := models.Recipe{
		Title: firstNonEmpty(CleanText(c.Title), CleanText(page.Title)),
		URL:   resolveRef(sourceURL, firstNonEmpty(c.URL, page.URL, sourceURL)),
		Image: resolveRef(sourceURL, firstNonEmpty(c.Image, page.Image)),
		Tags:  UniqueFold(c.Tags),
	}
	if r.Image == "" {
		r.Image = n.Placeholder
	}

	r.YouTubeID = ExtractYouTubeID(c.Video)
	if r.YouTubeID == "" {
		r.YouTubeID = ExtractYouTubeID(page.Video)
	}

	for _, line := range c.Ingredients {
		if CleanText(line) == "" {
			continue
		}
		r.Ingredients = append(r.Ingredients, n.ingredients.Parse(line))
	}
	for _, s := range c.Steps {
		if s = CleanText(s); s != "" {
			r.Steps = append(r.Steps, s)
		}
	}

	if m, ok := ParseDuration(c.Time); ok {
		r.Time = models.IntPtr(m)
	}
	if s, ok := ParseServings(c.Servings); ok {
		r.Servings = models.IntPtr(s)
	}

	r.ID = RecipeID(r.Title, r.URL)

	switch {
	case r.Title == "":
		return r, fmt.Errorf("%w: missing title", ErrIncomplete)
	case len(r.Ingredients) == 0:
		return r, fmt.Errorf("%w: no ingredients", ErrIncomplete)
	case len(r.Steps) == 0:
		return r, fmt.Errorf("%w: no steps", ErrIncomplete)
	}
	return r, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// resolveRef makes ref absolute against base when it is relative.
func resolveRef(base, ref string) string {
	if ref == "" || base == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	return b.ResolveReference(u).String()
}
