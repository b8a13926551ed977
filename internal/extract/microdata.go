package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// Microdata reads the first itemscope typed as schema.org/Recipe.
type Microdata struct{}

func (Microdata) Name() string { return StrategyMicrodata }

func (Microdata) Extract(p *Page) []models.RawCandidate {
	root := recipeScope(p.Doc)
	if root == nil {
		return nil
	}

	c := models.RawCandidate{
		Title:    propValue(root, "name"),
		Image:    propValue(root, "image"),
		URL:      propValue(root, "url"),
		Servings: propValue(root, "recipeYield"),
	}
	for _, s := range props(root, "recipeIngredient") {
		c.Ingredients = append(c.Ingredients, itemValue(s))
	}
	if len(c.Ingredients) == 0 {
		for _, s := range props(root, "ingredients") {
			c.Ingredients = append(c.Ingredients, itemValue(s))
		}
	}
	for _, s := range props(root, "recipeInstructions") {
		c.Steps = append(c.Steps, instructionText(s)...)
	}
	c.Time = durationField(propValue(root, "totalTime"), propValue(root, "prepTime"), propValue(root, "cookTime"))

	for _, s := range props(root, "video") {
		if _, scoped := s.Attr("itemscope"); scoped {
			c.Video = firstNonEmpty(propValue(s, "contentUrl"), propValue(s, "embedUrl"), propValue(s, "url"))
		} else {
			c.Video = itemValue(s)
		}
		if c.Video != "" {
			break
		}
	}

	for _, key := range []string{"recipeCategory", "recipeCuisine"} {
		for _, s := range props(root, key) {
			c.Tags = append(c.Tags, itemValue(s))
		}
	}
	for _, s := range props(root, "keywords") {
		c.Tags = append(c.Tags, keywordList(itemValue(s))...)
	}

	if c.Empty() {
		return nil
	}
	return []models.RawCandidate{c}
}

func recipeScope(doc *goquery.Document) *goquery.Selection {
	var root *goquery.Selection
	doc.Find("[itemscope][itemtype]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t, _ := s.Attr("itemtype")
		for _, typ := range strings.Fields(t) {
			if isType(typ, "Recipe") {
				root = s
				return false
			}
		}
		return true
	})
	return root
}

// props returns the elements carrying itemprop=name that belong to scope
// itself, skipping properties of nested items.
func props(scope *goquery.Selection, name string) []*goquery.Selection {
	var out []*goquery.Selection
	scope.Find("[itemprop]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("itemprop")
		if !hasToken(v, name) {
			return
		}
		if !s.Parent().Closest("[itemscope]").IsSelection(scope) {
			return
		}
		out = append(out, s)
	})
	return out
}

func propValue(scope *goquery.Selection, name string) string {
	for _, s := range props(scope, name) {
		if v := itemValue(s); v != "" {
			return v
		}
	}
	return ""
}

// itemValue prefers the content attribute, then the URL-ish attribute of
// media and link elements, then visible text.
func itemValue(s *goquery.Selection) string {
	if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return normalize.CleanText(v)
	}
	var attr string
	switch goquery.NodeName(s) {
	case "img", "source", "iframe", "embed", "video", "audio":
		attr = "src"
	case "a", "link", "area":
		attr = "href"
	case "time":
		attr = "datetime"
	case "meta":
		return ""
	}
	if attr != "" {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return normalize.CleanText(s.Text())
}

// instructionText handles the three shapes seen in the wild: a nested
// HowToStep/HowToSection item, a container with list items, or a text block.
func instructionText(s *goquery.Selection) []string {
	if _, scoped := s.Attr("itemscope"); scoped {
		var out []string
		for _, el := range props(s, "itemListElement") {
			out = append(out, instructionText(el)...)
		}
		if len(out) > 0 {
			return out
		}
		if t := propValue(s, "text"); t != "" {
			return []string{t}
		}
	}
	if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return splitLines(v)
	}
	if items := s.Find("li"); items.Length() > 0 {
		var out []string
		items.Each(func(_ int, li *goquery.Selection) {
			if t := normalize.CleanText(li.Text()); t != "" {
				out = append(out, t)
			}
		})
		return out
	}
	if t := normalize.CleanText(s.Text()); t != "" {
		return []string{t}
	}
	return nil
}

func hasToken(list, want string) bool {
	for _, f := range strings.Fields(list) {
		if f == want {
			return true
		}
	}
	return false
}
