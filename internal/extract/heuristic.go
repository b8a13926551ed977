package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// Vocabulary drives the heuristic scorer. Words are matched case-insensitively
// at the start of a word, so stems like "mescol" cover "mescola" and "mescolate".
type Vocabulary struct {
	IngredientWords []string `mapstructure:"ingredient_words" yaml:"ingredient_words"`
	UnitWords       []string `mapstructure:"unit_words" yaml:"unit_words"`
	CookingVerbs    []string `mapstructure:"cooking_verbs" yaml:"cooking_verbs"`
}

// DefaultVocabulary covers Italian and English recipe pages.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		IngredientWords: []string{
			"farin", "zuccher", "sale", "pepe", "olio", "burro", "uov", "latte", "acqua",
			"pomodor", "aglio", "cipoll", "parmigian", "formaggi", "lievito", "basilico",
			"prezzemolo", "pasta", "riso", "carne", "pollo", "pesce", "limon", "panna",
			"flour", "sugar", "salt", "pepper", "oil", "butter", "egg", "milk", "water",
			"tomato", "garlic", "onion", "cheese", "yeast", "cream", "lemon", "chicken",
		},
		UnitWords: []string{
			"g", "gr", "kg", "ml", "cl", "dl", "l", "cucchiai", "cucchiaino", "cucchiaini",
			"cucchiaio", "tazza", "tazze", "pizzico", "spicchi", "spicchio", "q.b.",
			"tbsp", "tsp", "cup", "cups", "oz", "lb", "pinch", "clove", "cloves",
		},
		CookingVerbs: []string{
			"mescol", "impast", "cuoc", "cuoci", "inforn", "aggiung", "versa", "taglia",
			"trit", "soffrigg", "frigg", "bolli", "lessa", "sbatt", "amalgam", "scald",
			"rosola", "sala", "servi", "lascia", "copri", "scola", "monta", "stendi",
			"mix", "stir", "bake", "cook", "add", "pour", "chop", "fry", "boil", "whisk",
			"heat", "preheat", "simmer", "serve", "season", "drain", "knead",
		},
	}
}

// Heuristic guesses ingredients and steps from plain DOM structure when no
// markup is present. Its output is lossy; normalization is the backstop.
type Heuristic struct {
	ingredientRe *regexp.Regexp
	verbRe       *regexp.Regexp
}

// NewHeuristic compiles vocab. Empty word lists fall back to DefaultVocabulary.
func NewHeuristic(vocab Vocabulary) *Heuristic {
	def := DefaultVocabulary()
	if len(vocab.IngredientWords) == 0 {
		vocab.IngredientWords = def.IngredientWords
	}
	if len(vocab.UnitWords) == 0 {
		vocab.UnitWords = def.UnitWords
	}
	if len(vocab.CookingVerbs) == 0 {
		vocab.CookingVerbs = def.CookingVerbs
	}

	ingredient := `(?i)^\s*\d|(?:^|[^\p{L}])(?:` + alternation(vocab.UnitWords) + `)(?:$|[^\p{L}])` +
		`|(?:^|[^\p{L}])(?:` + alternation(vocab.IngredientWords) + `)`
	verb := `(?i)(?:^|[^\p{L}])(?:` + alternation(vocab.CookingVerbs) + `)`

	return &Heuristic{
		ingredientRe: regexp.MustCompile(ingredient),
		verbRe:       regexp.MustCompile(verb),
	}
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		// matches nothing
		return `[^\s\S]`
	}
	return strings.Join(quoted, "|")
}

func (*Heuristic) Name() string { return StrategyHeuristic }

func (h *Heuristic) Extract(p *Page) []models.RawCandidate {
	c := models.RawCandidate{
		Title:       pageHeading(p.Doc),
		Image:       meta(p.Doc, "og:image"),
		Video:       pageVideo(p.Doc),
		Ingredients: h.bestIngredients(p.Doc),
		Steps:       h.bestSteps(p.Doc),
	}
	if len(c.Ingredients) == 0 && len(c.Steps) == 0 {
		return nil
	}
	return []models.RawCandidate{c}
}

// IngredientScore counts the lines that look like ingredients.
func (h *Heuristic) IngredientScore(lines []string) int {
	return countMatches(h.ingredientRe, lines)
}

// StepScore counts the lines that mention a cooking verb.
func (h *Heuristic) StepScore(lines []string) int {
	return countMatches(h.verbRe, lines)
}

func countMatches(re *regexp.Regexp, lines []string) int {
	n := 0
	for _, l := range lines {
		if re.MatchString(l) {
			n++
		}
	}
	return n
}

// bestIngredients picks the list with most ingredient-like items. Only a
// strictly higher score replaces the current best, so the first list wins ties.
func (h *Heuristic) bestIngredients(doc *goquery.Document) []string {
	var (
		best      []string
		bestScore int
	)
	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		items := listItems(s)
		if score := h.IngredientScore(items); score > bestScore {
			best, bestScore = items, score
		}
	})
	return best
}

// bestSteps scores lists and paragraphs in document order; a paragraph is
// split into sentences so each one counts as an item.
func (h *Heuristic) bestSteps(doc *goquery.Document) []string {
	var (
		best      []string
		bestScore int
	)
	doc.Find("ul, ol, p").Each(func(_ int, s *goquery.Selection) {
		var items []string
		if goquery.NodeName(s) == "p" {
			items = sentences(s.Text())
		} else {
			items = listItems(s)
		}
		if score := h.StepScore(items); score > bestScore {
			best, bestScore = items, score
		}
	})
	return best
}

func listItems(s *goquery.Selection) []string {
	var out []string
	s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		if t := normalize.CleanText(li.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

func sentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(normalize.CleanText(text), -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func pageHeading(doc *goquery.Document) string {
	if t := normalize.CleanText(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return normalize.CleanText(doc.Find("h2").First().Text())
}

func pageVideo(doc *goquery.Document) string {
	var src string
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("src")
		if normalize.ExtractYouTubeID(v) != "" {
			src = v
			return false
		}
		return true
	})
	if src != "" {
		return src
	}
	return firstNonEmpty(meta(doc, "og:video:secure_url"), meta(doc, "og:video:url"), meta(doc, "og:video"))
}
