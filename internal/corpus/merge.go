package corpus

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// Reject reasons reported by Merge.
const (
	RejectInvalid      = "invalid"
	RejectDuplicateID  = "duplicate_id"
	RejectDuplicateURL = "duplicate_url"
	RejectDuplicateKey = "duplicate_key"
)

// Rejection records one candidate Merge refused.
type Rejection struct {
	ID     string
	Title  string
	URL    string
	Reason string
}

// MergeStats counts merge outcomes.
type MergeStats struct {
	Existing  int
	Accepted  int
	Invalid   int
	Duplicate int
}

// MergeResult is the merged recipe list plus what happened to each candidate.
type MergeResult struct {
	Recipes  []models.Recipe
	Stats    MergeStats
	Rejected []Rejection
}

// MergeOptions controls presentation only; dedup is the same either way.
type MergeOptions struct {
	SortByTitle bool
}

// DedupKey is the normalized title joined with the lowercased, trimmed URL.
func DedupKey(r models.Recipe) string {
	return normalize.TitleKey(r.Title) + "|" + urlKey(r.URL)
}

func urlKey(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

// Merge appends valid candidates whose id, url and dedup key are all new.
// Existing entries are never updated, and candidates are checked against
// earlier candidates of the same batch too, so merging a batch twice gives
// the same result as merging it once.
func Merge(existing, candidates []models.Recipe, opts MergeOptions) MergeResult {
	res := MergeResult{
		Recipes: make([]models.Recipe, 0, len(existing)+len(candidates)),
		Stats:   MergeStats{Existing: len(existing)},
	}

	ids := make(map[string]struct{}, len(existing)+len(candidates))
	urls := make(map[string]struct{}, len(existing)+len(candidates))
	keys := make(map[string]struct{}, len(existing)+len(candidates))
	remember := func(r models.Recipe) {
		if r.ID != "" {
			ids[r.ID] = struct{}{}
		}
		if u := urlKey(r.URL); u != "" {
			urls[u] = struct{}{}
		}
		keys[DedupKey(r)] = struct{}{}
	}

	for _, r := range existing {
		res.Recipes = append(res.Recipes, r)
		remember(r)
	}

	for _, r := range candidates {
		reason := ""
		switch {
		case !r.Valid():
			reason = RejectInvalid
		case has(ids, r.ID):
			reason = RejectDuplicateID
		case has(urls, urlKey(r.URL)):
			reason = RejectDuplicateURL
		case has(keys, DedupKey(r)):
			reason = RejectDuplicateKey
		}
		if reason != "" {
			res.Rejected = append(res.Rejected, Rejection{ID: r.ID, Title: r.Title, URL: r.URL, Reason: reason})
			if reason == RejectInvalid {
				res.Stats.Invalid++
			} else {
				res.Stats.Duplicate++
			}
			continue
		}
		res.Recipes = append(res.Recipes, r)
		res.Stats.Accepted++
		remember(r)
	}

	if opts.SortByTitle {
		SortByTitle(res.Recipes)
	}
	return res
}

func has(set map[string]struct{}, k string) bool {
	if k == "" {
		return false
	}
	_, ok := set[k]
	return ok
}

// SortByTitle orders recipes by title with Italian collation, so accented
// titles sort next to their plain spelling. The sort is stable.
func SortByTitle(recipes []models.Recipe) {
	col := collate.New(language.Italian, collate.IgnoreCase, collate.Loose)
	sort.SliceStable(recipes, func(i, j int) bool {
		return col.CompareString(recipes[i].Title, recipes[j].Title) < 0
	})
}
