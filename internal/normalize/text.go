package normalize

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaceRe = regexp.MustCompile(`\s+`)

// CleanText trims s and collapses internal whitespace runs to one space.
func CleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// StripDiacritics removes combining marks: "àèìòù" -> "aeiou".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify lowercases s, strips diacritics and collapses every run of
// characters outside [a-z0-9] into a single hyphen.
func Slugify(s string) string {
	s = strings.ToLower(StripDiacritics(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(s))
	lastDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// RecipeID derives the corpus identifier. Titles without any Latin
// letters or digits fall back to a short hash of title and URL.
func RecipeID(title, url string) string {
	if slug := Slugify(title); slug != "" {
		return slug
	}
	sum := sha1.Sum([]byte(strings.TrimSpace(title) + "|" + strings.TrimSpace(url)))
	return "r-" + hex.EncodeToString(sum[:])[:10]
}

// FoldTokens returns the set of words of s after stripping diacritics and
// lowercasing; anything that is not a letter or digit separates words.
func FoldTokens(s string) map[string]struct{} {
	s = strings.ToLower(StripDiacritics(s))
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// TitleKey is the normalized title used in dedup keys.
func TitleKey(title string) string {
	return strings.ToLower(CleanText(StripDiacritics(title)))
}

// UniqueFold drops empty entries and case-insensitive duplicates,
// keeping the first spelling seen.
func UniqueFold(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = CleanText(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
