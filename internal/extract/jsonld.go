package extract

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// JSONLD reads schema.org Recipe nodes from ld+json script blocks. Only the
// first block holding a Recipe node is used.
type JSONLD struct{}

func (JSONLD) Name() string { return StrategyJSONLD }

func (JSONLD) Extract(p *Page) []models.RawCandidate {
	var out []models.RawCandidate
	p.Doc.Find(`script[type*="ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, v := range DecodeBlock(s.Text()) {
			if node, ok := findRecipe(v); ok {
				out = append(out, candidateFromNode(node))
				return false
			}
		}
		return true
	})
	return out
}

// DecodeBlock parses one script block. When strict parsing fails the block is
// split at top-level boundaries where a new object or array starts, and each
// part is parsed on its own; parts that still fail are dropped.
func DecodeBlock(raw string) []any {
	raw = trimScriptWrappers(raw)
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return []any{v}
	}

	var out []any
	for _, part := range splitTopLevel(raw) {
		var pv any
		if err := json.Unmarshal([]byte(part), &pv); err == nil {
			out = append(out, pv)
		}
	}
	return out
}

func trimScriptWrappers(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<!--")
	s = strings.TrimSuffix(s, "-->")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "//<![CDATA[")
	s = strings.TrimPrefix(s, "<![CDATA[")
	s = strings.TrimSuffix(s, "//]]>")
	s = strings.TrimSuffix(s, "]]>")
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, ";"))
}

// splitTopLevel cuts s into the top-level JSON values it appears to contain.
// Raw control characters inside strings are replaced by spaces on the way,
// since unescaped newlines are the most common breakage in the wild.
func splitTopLevel(s string) []string {
	var (
		parts    []string
		cur      strings.Builder
		depth    int
		inString bool
		escaped  bool
	)
	flush := func() {
		if p := strings.TrimSpace(cur.String()); p != "" {
			parts = append(parts, p)
		}
		cur.Reset()
	}

	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n' || r == '\r' || r == '\t':
				r = ' '
			}
			cur.WriteRune(r)
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{', '[':
			if depth == 0 {
				flush()
			}
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				cur.WriteRune(r)
				flush()
				continue
			}
			if depth < 0 {
				depth = 0
			}
		case ',', ';':
			if depth == 0 {
				continue
			}
		}
		if depth == 0 && r != '"' && !inString {
			// stray text between values
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return parts
}

// findRecipe walks arrays, @graph wrappers and mainEntity looking for the
// first node whose @type is Recipe.
func findRecipe(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		if isType(val["@type"], "Recipe") {
			return val, true
		}
		for _, key := range []string{"@graph", "mainEntity", "mainEntityOfPage"} {
			if nested, ok := val[key]; ok {
				if node, ok := findRecipe(nested); ok {
					return node, true
				}
			}
		}
	case []any:
		for _, item := range val {
			if node, ok := findRecipe(item); ok {
				return node, true
			}
		}
	}
	return nil, false
}

// isType matches @type as a string or a list of strings, ignoring case and
// any vocabulary prefix ("schema:Recipe", "http://schema.org/Recipe").
func isType(t any, want string) bool {
	match := func(s string) bool {
		if i := strings.LastIndexAny(s, "/:"); i >= 0 {
			s = s[i+1:]
		}
		return strings.EqualFold(strings.TrimSpace(s), want)
	}
	switch tv := t.(type) {
	case string:
		return match(tv)
	case []any:
		for _, item := range tv {
			if s, ok := item.(string); ok && match(s) {
				return true
			}
		}
	}
	return false
}

func candidateFromNode(m map[string]any) models.RawCandidate {
	c := models.RawCandidate{
		Title:       firstNonEmpty(stringValue(m["name"]), stringValue(m["headline"])),
		Image:       firstImage(m["image"]),
		URL:         stringValue(m["url"]),
		Ingredients: ingredientLines(firstPresent(m, "recipeIngredient", "ingredients")),
		Steps:       instructionLines(m["recipeInstructions"]),
		Time:        durationField(stringValue(m["totalTime"]), stringValue(m["prepTime"]), stringValue(m["cookTime"])),
		Servings:    stringValue(m["recipeYield"]),
		Video:       videoURL(m["video"]),
	}
	c.Tags = append(c.Tags, stringList(m["recipeCategory"])...)
	c.Tags = append(c.Tags, stringList(m["recipeCuisine"])...)
	c.Tags = append(c.Tags, keywordList(m["keywords"])...)

	// Publishers routinely ship entity-encoded or marked-up strings in
	// ld+json; text fields are reduced to what a reader would see.
	c.Title = htmlText(c.Title)
	c.Servings = htmlText(c.Servings)
	c.Ingredients = htmlLines(c.Ingredients)
	c.Steps = htmlLines(c.Steps)
	c.Tags = htmlLines(c.Tags)
	c.Image = html.UnescapeString(c.Image)
	c.URL = html.UnescapeString(c.URL)
	c.Video = html.UnescapeString(c.Video)
	return c
}

var blockTagRe = regexp.MustCompile(`(?i)<(br|/?p|/?li|/?div|/?h[1-6])\b`)

// htmlText decodes entities and drops markup from a JSON-LD string value.
// Block-level tags become word breaks so adjacent paragraphs do not fuse.
func htmlText(s string) string {
	text := html.UnescapeString(s)
	if strings.Contains(s, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(blockTagRe.ReplaceAllString(s, " <$1"))); err == nil {
			text = doc.Text()
		}
	}
	return normalize.CleanText(strings.ReplaceAll(text, "\u00a0", " "))
}

func htmlLines(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = htmlText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// durationField prefers totalTime; otherwise prep and cook time are summed
// when at least one of them parses.
func durationField(total, prep, cook string) string {
	if strings.TrimSpace(total) != "" {
		return total
	}
	p, okP := normalize.ParseDuration(prep)
	c, okC := normalize.ParseDuration(cook)
	if !okP && !okC {
		return ""
	}
	return fmt.Sprintf("PT%dM", p+c)
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return ""
	case []any:
		for _, item := range val {
			if s := stringValue(item); s != "" {
				return s
			}
		}
	case map[string]any:
		return firstNonEmpty(stringValue(val["@value"]), stringValue(val["value"]), stringValue(val["name"]))
	}
	return ""
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func keywordList(v any) []string {
	if s, ok := v.(string); ok {
		var out []string
		s = html.UnescapeString(s)
		for _, k := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
		return out
	}
	return stringList(v)
}

func firstImage(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		return firstNonEmpty(stringValue(val["url"]), stringValue(val["contentUrl"]), stringValue(val["@id"]))
	case []any:
		for _, item := range val {
			if u := firstImage(item); u != "" {
				return u
			}
		}
	}
	return ""
}

func ingredientLines(v any) []string {
	var out []string
	switch val := v.(type) {
	case string:
		out = append(out, splitLines(val)...)
	case []any:
		for _, item := range val {
			switch it := item.(type) {
			case string:
				out = append(out, it)
			case map[string]any:
				if s := firstNonEmpty(stringValue(it["text"]), stringValue(it["name"]), stringValue(it["item"])); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// instructionLines flattens recipeInstructions: plain strings, HowToStep
// objects, and HowToSection objects whose itemListElement holds the steps.
func instructionLines(v any) []string {
	var out []string
	switch val := v.(type) {
	case string:
		out = append(out, splitLines(val)...)
	case []any:
		for _, item := range val {
			out = append(out, instructionLines(item)...)
		}
	case map[string]any:
		if nested, ok := val["itemListElement"]; ok {
			return instructionLines(nested)
		}
		if s := firstNonEmpty(stringValue(val["text"]), stringValue(val["name"])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func videoURL(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		return firstNonEmpty(stringValue(val["contentUrl"]), stringValue(val["embedUrl"]), stringValue(val["url"]))
	case []any:
		for _, item := range val {
			if u := videoURL(item); u != "" {
				return u
			}
		}
	}
	return ""
}
