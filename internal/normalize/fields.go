package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ricettario/pkg/models"
)

var (
	isoDurationRe = regexp.MustCompile(`(?i)^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)
	firstIntRe    = regexp.MustCompile(`\d+`)
)

// DefaultUnits is the bounded unit vocabulary recognized after a leading quantity.
var DefaultUnits = []string{
	"g", "gr", "kg", "mg", "hg",
	"ml", "cl", "dl", "l", "lt",
	"cucchiaio", "cucchiai", "cucchiaino", "cucchiaini", "tbsp", "tsp",
	"cup", "cups", "tazza", "tazze", "bicchiere", "bicchieri",
	"fetta", "fette", "slice", "slices",
	"spicchio", "spicchi", "clove", "cloves",
	"uovo", "uova", "egg", "eggs",
	"pizzico", "pizzichi", "pinch",
	"bustina", "bustine", "foglia", "foglie",
	"rametto", "rametti", "mazzetto", "vasetto", "lattina", "scatola",
	"pz", "pezzi",
}

// ParseDuration converts an ISO-8601 duration ("PT1H10M", "P1DT2H") to
// whole minutes. ok is false for empty or malformed input, never a silent zero.
func ParseDuration(s string) (minutes int, ok bool) {
	s = strings.TrimSpace(s)
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "" && m[4] == "") {
		return 0, false
	}
	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	mins, _ := strconv.Atoi(m[3])
	secs, _ := strconv.ParseFloat(m[4], 64)
	total := days*24*60 + hours*60 + mins + int(secs/60)
	if total < 0 {
		return 0, false
	}
	return total, true
}

// ParseServings returns the first integer found in a yield string ("4 porzioni" -> 4).
func ParseServings(s string) (int, bool) {
	m := firstIntRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IngredientParser splits "200g farina" into quantity, unit and name.
type IngredientParser struct {
	re *regexp.Regexp
}

// NewIngredientParser compiles the leading-quantity pattern for the given
// units; nil or empty means DefaultUnits.
func NewIngredientParser(units []string) *IngredientParser {
	if len(units) == 0 {
		units = DefaultUnits
	}
	sorted := make([]string, 0, len(units))
	for _, u := range units {
		if u = strings.TrimSpace(u); u != "" {
			sorted = append(sorted, regexp.QuoteMeta(strings.ToLower(u)))
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	pattern := `(?i)^(\d+(?:[.,]\d+)?|\d+\s*/\s*\d+)(?:\s*(` + strings.Join(sorted, "|") + `)\.?\s+|\s+)(?:di\s+|d'|of\s+)?(.+)$`
	return &IngredientParser{re: regexp.MustCompile(pattern)}
}

// Parse never fails: lines without a leading quantity keep the whole
// cleaned text as Ref.
func (p *IngredientParser) Parse(line string) models.Ingredient {
	line = CleanText(line)
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return models.Ingredient{Ref: line}
	}
	name := CleanText(m[3])
	if name == "" {
		return models.Ingredient{Ref: line}
	}
	ing := models.Ingredient{Ref: name, Unit: strings.ToLower(m[2])}
	if q, ok := parseQuantity(m[1]); ok {
		ing.Qty = models.Num(q)
	} else {
		ing.Qty = &models.Quantity{Raw: m[1]}
	}
	return ing
}

func parseQuantity(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	if num, den, found := strings.Cut(s, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return f, err == nil
}
