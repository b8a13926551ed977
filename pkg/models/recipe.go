package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// PlaceholderImage is used when neither the candidate nor the page carries an image.
const PlaceholderImage = "icons/icon-192.png"

// Recipe is the normalized, internal form of a recipe entry.
//
// Every extraction strategy is mapped into this structure first,
// then the corpus file, the sqlite mirror and the API are written from it.
type Recipe struct {
	ID          string       `json:"id"`                 // slug of the title (or hash fallback)
	Title       string       `json:"title"`              // trimmed, never empty
	URL         string       `json:"url"`                // canonical source URL
	Image       string       `json:"image"`              // image URL or PlaceholderImage
	Ingredients []Ingredient `json:"ingredients"`        // parsed ingredient lines
	Steps       []string     `json:"steps"`              // ordered instructions
	Time        *int         `json:"time,omitempty"`     // minutes
	Servings    *int         `json:"servings,omitempty"` // portions
	Tags        []string     `json:"tags"`               // category / cuisine, deduplicated
	YouTubeID   string       `json:"youtubeId"`          // 11 chars or ""
}

// Valid reports whether the recipe can enter the corpus: a title,
// at least one ingredient and at least one step.
func (r Recipe) Valid() bool {
	return strings.TrimSpace(r.Title) != "" && len(r.Ingredients) > 0 && len(r.Steps) > 0
}

// Ingredient is one parsed ingredient line.
type Ingredient struct {
	Ref  string    `json:"ref"`
	Qty  *Quantity `json:"qty,omitempty"`
	Unit string    `json:"unit,omitempty"`
}

// UnmarshalJSON also accepts a bare string, the form hand-written corpus
// entries use for ingredients.
func (i *Ingredient) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*i = Ingredient{Ref: strings.TrimSpace(s)}
		return nil
	}
	type plain Ingredient
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Ref == "" {
		var alt struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(b, &alt)
		p.Ref = alt.Name
	}
	*i = Ingredient(p)
	return nil
}

// Quantity holds an ingredient amount. Legacy corpus entries carry free-text
// amounts ("q.b.", "1/2"), so the JSON form is either a number or a string.
type Quantity struct {
	Num float64
	Raw string // set when the amount is not a plain number
}

// Num returns a numeric quantity.
func Num(v float64) *Quantity { return &Quantity{Num: v} }

func (q Quantity) String() string {
	if q.Raw != "" {
		return q.Raw
	}
	return strconv.FormatFloat(q.Num, 'f', -1, 64)
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.Raw != "" {
		return json.Marshal(q.Raw)
	}
	return json.Marshal(q.Num)
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*q = Quantity{Num: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		*q = Quantity{Num: f}
		return nil
	}
	*q = Quantity{Raw: s}
	return nil
}

// IntPtr is a small helper for the optional integer fields.
func IntPtr(n int) *int { return &n }
